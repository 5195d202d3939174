package scanner

import (
	"bytes"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/srg/glitch/internal/device"
)

// UnknownName is displayed for peripherals that never advertised a name.
const UnknownName = "Unknown Device"

// Peripheral is one discovered BLE device, unique by ID within a session.
// ServiceData holds the latest payload per normalized service UUID.
type Peripheral struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	RSSI             int               `json:"rssi"`
	TxPower          *int              `json:"txPower,omitempty"`
	Connectable      bool              `json:"connectable"`
	Services         []string          `json:"services,omitempty"`
	ManufacturerData []byte            `json:"manufacturerData,omitempty"`
	Manufacturer     string            `json:"manufacturer,omitempty"`
	ServiceData      map[string][]byte `json:"serviceData,omitempty"`
	FirstSeen        time.Time         `json:"firstSeen"`
	LastSeen         time.Time         `json:"lastSeen"`
	Seen             int               `json:"seen"`
}

// DisplayName returns the advertised name or UnknownName.
func (p Peripheral) DisplayName() string {
	if p.Name == "" {
		return UnknownName
	}
	return p.Name
}

// sighting is the plain data extracted from one advertisement. Reading the
// advertisement happens outside the session lock.
type sighting struct {
	id          string
	name        string
	rssi        int
	txPower     *int
	connectable bool
	services    []string
	manufData   []byte
	serviceData map[string][]byte
}

func readSighting(adv device.Advertisement) sighting {
	s := sighting{
		id:          adv.Addr(),
		name:        adv.LocalName(),
		rssi:        adv.RSSI(),
		connectable: adv.Connectable(),
		manufData:   adv.ManufacturerData(),
		services:    device.NormalizeUUIDs(adv.Services()),
	}
	sort.Strings(s.services)

	for _, sd := range adv.ServiceData() {
		uuid := device.NormalizeUUID(sd.UUID)
		if uuid == "" {
			continue
		}
		if s.serviceData == nil {
			s.serviceData = make(map[string][]byte)
		}
		s.serviceData[uuid] = bytes.Clone(sd.Data)
	}

	if tx := adv.TxPowerLevel(); tx != device.TxPowerUnavailable {
		s.txPower = &tx
	}
	if s.name == "" {
		s.name = nameFromManufacturerData(s.manufData)
	}
	return s
}

func newPeripheral(s sighting, now time.Time) Peripheral {
	return Peripheral{
		ID:               s.id,
		Name:             s.name,
		RSSI:             s.rssi,
		TxPower:          s.txPower,
		Connectable:      s.connectable,
		Services:         s.services,
		ManufacturerData: s.manufData,
		Manufacturer:     device.Manufacturer(s.manufData),
		ServiceData:      s.serviceData,
		FirstSeen:        now,
		LastSeen:         now,
		Seen:             1,
	}
}

// merge applies a re-observation. Signal strength always follows the latest
// sighting; a name is only replaced by another non-empty name, since scan
// responses and plain advertisements alternate and only some carry it.
func (p Peripheral) merge(s sighting, now time.Time) Peripheral {
	p.RSSI = s.rssi
	p.LastSeen = now
	p.Seen++
	p.Connectable = s.connectable

	if s.name != "" {
		p.Name = s.name
	}
	if s.txPower != nil {
		p.TxPower = s.txPower
	}
	if len(s.manufData) > 0 {
		p.ManufacturerData = s.manufData
		p.Manufacturer = device.Manufacturer(s.manufData)
	}

	// Service data is replaced per UUID. The map is cloned for the same
	// reason as Services below.
	if len(s.serviceData) > 0 {
		merged := maps.Clone(p.ServiceData)
		if merged == nil {
			merged = make(map[string][]byte, len(s.serviceData))
		}
		maps.Copy(merged, s.serviceData)
		p.ServiceData = merged
	}

	// Services accumulate. A fresh slice keeps earlier snapshots untouched.
	merged := slices.Clone(p.Services)
	for _, svc := range s.services {
		if !slices.Contains(merged, svc) {
			merged = append(merged, svc)
		}
	}
	sort.Strings(merged)
	p.Services = merged

	return p
}

// nameFromManufacturerData looks for a readable ASCII run in manufacturer
// data; several vendors embed the device name there instead of a local name.
// The first two bytes are the company identifier and are skipped.
func nameFromManufacturerData(data []byte) string {
	const minLen, maxLen = 4, 32
	if len(data) < 2+minLen {
		return ""
	}

	best := ""
	start := -1
	for i := 2; i <= len(data); i++ {
		if i < len(data) && isReadableASCII(data[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if run := data[start:i]; len(run) >= minLen && len(run) > len(best) {
				best = string(run[:min(len(run), maxLen)])
			}
			start = -1
		}
	}
	return best
}

func isReadableASCII(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}
