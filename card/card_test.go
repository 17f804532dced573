package card

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLuhn(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		digits string
		want   bool
	}{
		"valid visa":       {"4532015112830366", true},
		"flipped check":    {"4532015112830367", false},
		"valid test pan":   {"4111111111111111", true},
		"non digit input":  {"4532a15112830366", false},
		"spaces rejected":  {"4532 0151 1283 0366", false},
		"empty":            {"", false},
		"single zero":      {"0", true},
		"valid mastercard": {"5555555555554444", true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Luhn(tt.digits))
		})
	}
}

func TestDetectBrand(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		digits string
		want   Brand
	}{
		"visa":                  {"4111111111111111", BrandVisa},
		"mastercard 51":         {"5105105105105100", BrandMastercard},
		"mastercard 2 series":   {"2223000048400011", BrandMastercard},
		"amex 34":               {"340000000000009", BrandAmex},
		"amex 37":               {"370000000000002", BrandAmex},
		"discover 6011":         {"6011000990139424", BrandDiscover},
		"discover 65":           {"6500000000000002", BrandDiscover}, // 65 outranks the verve 6500 rule
		"discover 644":          {"6445644564456445", BrandDiscover},
		"discover 622":          {"6221261111117890", BrandDiscover},
		"verve 5060":            {"5060990580000217499", BrandVerve},
		"verve 5078":            {"5078123412341234", BrandVerve},
		"unknown":               {"9999999999999999", BrandUnknown},
		"mastercard 2720 bound": {"2720990000000000", BrandMastercard},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBrand(tt.digits))
		})
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		digits string
		want   bool
	}{
		"visa 16 digits":          {"4111111111111111", true},
		"visa 12 digits rejected": {"411111111111", false}, // 12 is not a visa length
		"visa 13 digits":          {"4222222222222", true},
		"amex 15 digits":          {"370000000000002", true},
		"luhn failure":            {"4111111111111112", false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.digits))
		})
	}
}

func TestExpiryNotPastAt(t *testing.T) {
	t.Parallel()

	// Reference month: March 2025.
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		mm, yy string
		want   bool
	}{
		"current month":  {"03", "25", true},
		"previous month": {"02", "25", false},
		"next month":     {"04", "25", true},
		"next year":      {"01", "26", true},
		"invalid month":  {"13", "25", false},
		"zero month":     {"00", "25", false},
		"garbage month":  {"ab", "25", false},
		"garbage year":   {"03", "xy", false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpiryNotPastAt(tt.mm, tt.yy, now))
		})
	}
}
