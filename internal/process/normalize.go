// Package process cleans raw warehouse rows into the records the
// planner consumes. Legacy CHAR columns arrive padded and occasionally
// carry control characters, so every text field is normalized before
// any filtering or key building.
package process

import "strings"

// CleanReference trims padding and strips ASCII control characters.
func CleanReference(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeSize trims and uppercases a size label.
func NormalizeSize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeStoreName trims and uppercases a store name.
func NormalizeStoreName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// BuildSKU concatenates a clean reference and a normalized size.
func BuildSKU(reference, size string) string {
	return reference + size
}

var ecomMarkers = []string{"ECOM", "ECO", "ONLINE", "VIRTUAL", "WEB"}

// IsEcomStore reports whether a store name denotes an e-commerce
// channel. With includePrincipal, PRINCIPAL also counts; sales rows
// use that variant because the legacy system books online sales under
// the PRINCIPAL center.
func IsEcomStore(name string, includePrincipal bool) bool {
	upper := strings.ToUpper(name)
	for _, marker := range ecomMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return includePrincipal && strings.Contains(upper, "PRINCIPAL")
}
