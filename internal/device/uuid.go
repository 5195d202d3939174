package device

import "strings"

const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal format (lowercase, no dashes).
// A "0x" prefix is stripped, and full 128-bit UUIDs in the Bluetooth SIG base
// format (0000xxxx-0000-1000-8000-00805f9b34fb) are shortened to their 16-bit form.
// Returns "" for strings that are not hexadecimal.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")

	if u == "" {
		return ""
	}
	for _, r := range u {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return ""
		}
	}

	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings, dropping invalid entries.
func NormalizeUUIDs(uuids []string) []string {
	out := make([]string, 0, len(uuids))
	for _, u := range uuids {
		if n := NormalizeUUID(u); n != "" {
			out = append(out, n)
		}
	}
	return out
}
