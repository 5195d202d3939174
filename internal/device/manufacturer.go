package device

import (
	"encoding/binary"
	"fmt"
)

// Bluetooth SIG assigned company identifiers seen often enough to be worth
// naming on screen.
var companyNames = map[uint16]string{
	0x0006: "Microsoft",
	0x000F: "Broadcom",
	0x004C: "Apple",
	0x0059: "Nordic Semiconductor",
	0x0075: "Samsung",
	0x0087: "Garmin",
	0x00E0: "Google",
	0x0157: "Anhui Huami",
	0x0171: "Amazon",
	0x01DA: "Logitech",
	0x02E5: "Espressif",
	0x038F: "Xiaomi",
	0x0499: "Ruuvi Innovations",
	0x05A7: "Sonos",
	0xFFFE: "BLIMCo",
}

// CompanyID extracts the company identifier from manufacturer data: the
// first two bytes, little-endian, by BLE convention.
func CompanyID(data []byte) (uint16, bool) {
	if len(data) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(data[0:2]), true
}

// CompanyName returns the vendor name for id, or "" when it is not known.
func CompanyName(id uint16) string {
	return companyNames[id]
}

// Manufacturer names the vendor of manufacturer data. Unknown identifiers are
// rendered as hex; data too short to carry one yields "".
func Manufacturer(data []byte) string {
	id, ok := CompanyID(data)
	if !ok {
		return ""
	}
	if name := CompanyName(id); name != "" {
		return name
	}
	return fmt.Sprintf("0x%04X", id)
}
