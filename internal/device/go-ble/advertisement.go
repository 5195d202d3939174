package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/glitch/internal/device"
)

// BLEAdvertisement wraps ble.Advertisement to implement device.Advertisement interface
type BLEAdvertisement struct {
	adv ble.Advertisement
}

// NewBLEAdvertisement creates a new BLEAdvertisement wrapper
func NewBLEAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &BLEAdvertisement{adv: adv}
}

func (a *BLEAdvertisement) LocalName() string        { return a.adv.LocalName() }
func (a *BLEAdvertisement) ManufacturerData() []byte { return a.adv.ManufacturerData() }
func (a *BLEAdvertisement) TxPowerLevel() int        { return int(a.adv.TxPowerLevel()) }
func (a *BLEAdvertisement) Connectable() bool        { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int                { return a.adv.RSSI() }

// Addr returns the advertiser address, or "" when the stack did not report one.
func (a *BLEAdvertisement) Addr() string {
	addr := a.adv.Addr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

func (a *BLEAdvertisement) ServiceData() []device.ServiceData {
	bleServiceData := a.adv.ServiceData()
	result := make([]device.ServiceData, len(bleServiceData))
	for i, sd := range bleServiceData {
		result[i] = device.ServiceData{UUID: sd.UUID.String(), Data: sd.Data}
	}
	return result
}

func (a *BLEAdvertisement) Services() []string {
	bleServices := a.adv.Services()
	result := make([]string, len(bleServices))
	for i, svc := range bleServices {
		result[i] = svc.String()
	}
	return result
}
