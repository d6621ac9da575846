// Package normalizers provides canonicalization of contact identifiers
// and merchant names into stable comparison keys.
package normalizers

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("nphone", Phone)
	Register("nemail", Email)
	Register("nmerchant", MerchantName)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Phone canonicalizes a raw phone number into an 11-digit comparison
// key where possible:
//   - strips everything that is not a digit; empty input yields ""
//   - 11 digits starting with country code 1 are kept as-is
//   - 10 digits get a leading 1
//   - anything else is returned as the bare digit string
//
// Idempotent: Phone(Phone(x)) == Phone(x).
func Phone(raw string) string {
	digits := DigitsOnly(raw)
	if digits == "" {
		return ""
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return digits
	}
	if len(digits) == 10 {
		return "1" + digits
	}
	return digits
}

// Email canonicalizes an email address (trim, lowercase). Empty input
// yields "".
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// MerchantName strips a merchant name to lowercase alphanumerics for
// map lookups against the canonical registry.
func MerchantName(raw string) string {
	return strings.ToLower(Alphanumeric(raw))
}

// PhoneVariants expands a raw phone number into the deduplicated,
// priority-ordered list of formats to try against the record store:
// hyphenated 10-digit first (the store's primary format), then the
// bare 10-digit string, the original as given, and the original minus
// the country prefix.
func PhoneVariants(raw string) []string {
	canonical := Phone(raw)

	var local string
	if len(canonical) == 11 && strings.HasPrefix(canonical, "1") {
		local = canonical[1:]
	}

	candidates := make([]string, 0, 4)
	if len(local) == 10 {
		candidates = append(candidates, local[0:3]+"-"+local[3:6]+"-"+local[6:10])
		candidates = append(candidates, local)
	}
	candidates = append(candidates, raw)
	if strings.HasPrefix(raw, "+1") {
		candidates = append(candidates, strings.TrimPrefix(raw, "+1"))
	} else if strings.HasPrefix(raw, "1") && len(DigitsOnly(raw)) == 11 {
		candidates = append(candidates, strings.TrimPrefix(raw, "1"))
	}

	seen := make(map[string]bool, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		variants = append(variants, c)
	}
	return variants
}
