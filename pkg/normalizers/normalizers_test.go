package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhone(t *testing.T) {
	t.Run("should prefix 10 digit numbers with country code", func(t *testing.T) {
		assert.Equal(t, "13214436893", Phone("321-443-6893"))
		assert.Equal(t, "13214436893", Phone("(321) 443-6893"))
		assert.Equal(t, "13214436893", Phone("3214436893"))
	})

	t.Run("should keep 11 digit numbers starting with 1", func(t *testing.T) {
		assert.Equal(t, "13214436893", Phone("+1 321 443 6893"))
		assert.Equal(t, "13214436893", Phone("13214436893"))
	})

	t.Run("should return bare digits for other lengths", func(t *testing.T) {
		assert.Equal(t, "443689", Phone("44-36-89"))
		assert.Equal(t, "4432144368931", Phone("443-21-443-68931"))
	})

	t.Run("should return empty for empty or digitless input", func(t *testing.T) {
		assert.Equal(t, "", Phone(""))
		assert.Equal(t, "", Phone("ext."))
	})

	t.Run("should be idempotent", func(t *testing.T) {
		inputs := []string{"321-443-6893", "+13214436893", "3214436893", "44-36-89", ""}
		for _, input := range inputs {
			once := Phone(input)
			assert.Equal(t, once, Phone(once), "input %q", input)
		}
	})
}

func TestPhoneVariants(t *testing.T) {
	t.Run("should order hyphenated format first", func(t *testing.T) {
		variants := PhoneVariants("+13214436893")
		assert.Equal(t, "321-443-6893", variants[0])
		assert.Equal(t, "3214436893", variants[1])
		assert.Contains(t, variants, "+13214436893")
		assert.Contains(t, variants, "3214436893")
	})

	t.Run("should include the original input", func(t *testing.T) {
		variants := PhoneVariants("(321) 443-6893")
		assert.Contains(t, variants, "(321) 443-6893")
	})

	t.Run("should deduplicate variants", func(t *testing.T) {
		variants := PhoneVariants("321-443-6893")
		seen := map[string]int{}
		for _, v := range variants {
			seen[v]++
		}
		for v, count := range seen {
			assert.Equal(t, 1, count, "variant %q duplicated", v)
		}
	})

	t.Run("should drop the country prefix variant when present", func(t *testing.T) {
		variants := PhoneVariants("13214436893")
		assert.Contains(t, variants, "3214436893")
	})

	t.Run("should fall back to the raw string for short numbers", func(t *testing.T) {
		variants := PhoneVariants("44-36-89")
		assert.Equal(t, []string{"44-36-89"}, variants)
	})
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "owner@example.com", Email("  Owner@Example.COM "))
	assert.Equal(t, "", Email("   "))
}

func TestMerchantName(t *testing.T) {
	assert.Equal(t, "bluebottlecoffee", MerchantName("Blue Bottle Coffee"))
	assert.Equal(t, "joes7eleven", MerchantName("Joe's 7-Eleven!"))
	assert.Equal(t, "", MerchantName("--- ---"))
}

func TestRegistry(t *testing.T) {
	t.Run("should apply registered normalizers by name", func(t *testing.T) {
		assert.Equal(t, "13214436893", Apply("321-443-6893", "nphone"))
		assert.Equal(t, "abc", Apply("ABC", "lowercase"))
		assert.Equal(t, "abc", Apply("  abc ", "trim"))
	})

	t.Run("should return value unchanged for unknown normalizer", func(t *testing.T) {
		assert.Equal(t, "As-Is", Apply("As-Is", "unknown"))
	})

	t.Run("should expose built-ins through Get", func(t *testing.T) {
		fn, ok := Get("nmerchant")
		assert.True(t, ok)
		assert.Equal(t, "acme", fn("A.C.M.E"))
	})
}
