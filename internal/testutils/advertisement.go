package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/srg/glitch/internal/device"
)

// Advertisement is an in-memory device.Advertisement.
type Advertisement struct {
	Name        string               `json:"name"`
	Address     string               `json:"address"`
	Signal      int                  `json:"rssi"`
	UUIDs       []string             `json:"services"`
	Manufacture []byte               `json:"manufacturerData"`
	SvcData     []device.ServiceData `json:"-"`
	TxPower     int                  `json:"txPower"`
	CanConnect  bool                 `json:"connectable"`
}

var _ device.Advertisement = (*Advertisement)(nil)

func (a *Advertisement) LocalName() string                 { return a.Name }
func (a *Advertisement) ManufacturerData() []byte          { return a.Manufacture }
func (a *Advertisement) ServiceData() []device.ServiceData { return a.SvcData }
func (a *Advertisement) Services() []string                { return a.UUIDs }
func (a *Advertisement) TxPowerLevel() int                 { return a.TxPower }
func (a *Advertisement) Connectable() bool                 { return a.CanConnect }
func (a *Advertisement) RSSI() int                         { return a.Signal }
func (a *Advertisement) Addr() string                      { return a.Address }

// AdvertisementBuilder builds advertisements for tests with a fluent API.
// TX power defaults to "not present" and the device to connectable.
type AdvertisementBuilder struct {
	adv Advertisement
}

// NewAdvertisementBuilder creates a builder with default values.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: Advertisement{
		TxPower:    device.TxPowerUnavailable,
		CanConnect: true,
	}}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Signal = rssi
	return b
}

// WithServices adds service UUIDs in any accepted form.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.UUIDs = append(b.adv.UUIDs, uuids...)
	return b
}

func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.Manufacture = data
	return b
}

func (b *AdvertisementBuilder) WithServiceData(uuid string, data []byte) *AdvertisementBuilder {
	b.adv.SvcData = append(b.adv.SvcData, device.ServiceData{UUID: uuid, Data: data})
	return b
}

func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.adv.TxPower = power
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.CanConnect = c
	return b
}

// FromJSON fills fields present in a JSON document, with Sprintf formatting.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...any) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)
	if err := json.Unmarshal([]byte(jsonStr), &b.adv); err != nil {
		panic(fmt.Sprintf("FromJSON: failed to unmarshal advertisement: %v", err))
	}
	return b
}

// Build returns a copy of the configured advertisement.
func (b *AdvertisementBuilder) Build() *Advertisement {
	adv := b.adv
	return &adv
}

// Adv is shorthand for an advertisement with a name, address and RSSI.
func Adv(address, name string, rssi int) *Advertisement {
	return NewAdvertisementBuilder().WithAddress(address).WithName(name).WithRSSI(rssi).Build()
}
