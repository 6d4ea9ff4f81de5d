// Package redact strips personally identifying content from text and
// structured values before they are logged or shipped for audit.
package redact

import (
	"regexp"
	"strings"
)

// Markers substituted for redacted content. Typed so downstream
// consumers can tell what kind of value was removed.
const (
	MarkerEmail   = "[REDACTED_EMAIL]"
	MarkerPhone   = "[REDACTED_PHONE]"
	MarkerBarcode = "[REDACTED_BARCODE]"
	MarkerName    = "[REDACTED_NAME]"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// NANP-biased: optional country code, 3-3-4 groups with common
	// separators. Plain 10-digit runs are left to the barcode rule.
	phonePattern = regexp.MustCompile(`(\+?1[\s.\-]?)?(\(\d{3}\)[\s.\-]?|\d{3}[\s.\-])\d{3}[\s.\-]?\d{4}`)

	// Library barcodes are typically 14 digits; 12-20 covers the
	// variants we issue without touching years or short codes.
	barcodePattern = regexp.MustCompile(`\d{12,20}`)
)

// nameKeys are object keys whose values are replaced wholesale,
// regardless of content.
var nameKeys = map[string]bool{
	"name":         true,
	"firstname":    true,
	"first_name":   true,
	"lastname":     true,
	"last_name":    true,
	"middlename":   true,
	"middle_name":  true,
	"displayname":  true,
	"display_name": true,
	"fullname":     true,
	"full_name":    true,
	"username":     true,
	"user_name":    true,
	"patronname":   true,
	"patron_name":  true,
}

// Text redacts PII patterns from a string. Pattern order matters:
// emails first (they can contain digit runs), then phones, then bare
// barcode-length digit runs.
func Text(s string) string {
	s = emailPattern.ReplaceAllString(s, MarkerEmail)
	s = phonePattern.ReplaceAllString(s, MarkerPhone)
	s = barcodePattern.ReplaceAllString(s, MarkerBarcode)
	return s
}

// Object deep-redacts a structured value, preserving its shape.
// Maps are inspected by key name first: a key that names a sensitive
// field has its value replaced with a typed marker without recursing.
// Strings anywhere in the structure go through Text. Nil and
// non-container values pass through unchanged.
func Object(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return Text(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if marker, sensitive := markerForKey(k); sensitive {
				out[k] = marker
				continue
			}
			out[k] = Object(inner)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, inner := range val {
			if marker, sensitive := markerForKey(k); sensitive {
				out[k] = marker
				continue
			}
			out[k] = Text(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = Object(inner)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, inner := range val {
			out[i] = Text(inner)
		}
		return out
	default:
		return v
	}
}

func markerForKey(key string) (string, bool) {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "email"):
		return MarkerEmail, true
	case strings.Contains(k, "phone"):
		return MarkerPhone, true
	case strings.Contains(k, "barcode"):
		return MarkerBarcode, true
	case nameKeys[k]:
		return MarkerName, true
	}
	return "", false
}
