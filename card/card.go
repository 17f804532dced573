// Package card provides pure validation and classification helpers for
// primary account numbers and expiry dates. Every function is total:
// malformed input classifies as invalid or unknown rather than erroring.
package card

import (
	"regexp"
	"strconv"
	"time"
)

// Brand identifies the card scheme detected from the leading digits of a PAN.
type Brand string

const (
	BrandVisa       Brand = "visa"
	BrandMastercard Brand = "mastercard"
	BrandAmex       Brand = "amex"
	BrandDiscover   Brand = "discover"
	BrandVerve      Brand = "verve"
	BrandUnknown    Brand = "unknown"
)

// brandRule pairs a prefix pattern with the digit counts the scheme issues.
// Rules are evaluated in declaration order; the first matching prefix wins.
type brandRule struct {
	brand   Brand
	prefix  *regexp.Regexp
	lengths []int
}

var brandRules = []brandRule{
	{BrandVisa, regexp.MustCompile(`^4`), []int{13, 16, 19}},
	{BrandMastercard, regexp.MustCompile(`^(5[1-5]|2(2[2-9]|[3-6][0-9]|7[01]|720))`), []int{16}},
	{BrandAmex, regexp.MustCompile(`^3[47]`), []int{15}},
	{BrandDiscover, regexp.MustCompile(`^(6011|65|64[4-9]|622)`), []int{16, 19}},
	{BrandVerve, regexp.MustCompile(`^(5060|5061|5078|5079|6500)`), []int{16, 18, 19}},
}

// unknownLengths is the accepted digit count range for unrecognized schemes.
var unknownLengths = []int{12, 13, 14, 15, 16, 17, 18, 19}

// Luhn reports whether digits passes the Luhn checksum. Any non-digit
// character fails the check.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// DetectBrand classifies digits by fixed prefix rules. The rules are ordered
// and the first match wins, so a 6500-prefixed number classifies as discover
// via its 65 prefix before the verve rule is consulted.
func DetectBrand(digits string) Brand {
	for _, rule := range brandRules {
		if rule.prefix.MatchString(digits) {
			return rule.brand
		}
	}
	return BrandUnknown
}

// Lengths returns the digit counts accepted for the brand.
func (b Brand) Lengths() []int {
	for _, rule := range brandRules {
		if rule.brand == b {
			return rule.lengths
		}
	}
	return unknownLengths
}

// AcceptsLength reports whether the brand issues numbers of n digits.
func (b Brand) AcceptsLength(n int) bool {
	for _, l := range b.Lengths() {
		if l == n {
			return true
		}
	}
	return false
}

// Valid reports whether digits is a plausible PAN: it must pass Luhn and its
// digit count must be in the detected brand's accepted length set.
func Valid(digits string) bool {
	if !Luhn(digits) {
		return false
	}
	return DetectBrand(digits).AcceptsLength(len(digits))
}

// ExpiryNotPast reports whether the MM/YY expiry is the current month or
// later, evaluated against the local clock. See [ExpiryNotPastAt].
func ExpiryNotPast(mm, yy string) bool {
	return ExpiryNotPastAt(mm, yy, time.Now())
}

// ExpiryNotPastAt compares the first day of the expiry month against the
// first day of now's month in now's location. The comparison is calendar
// based, not elapsed time: a card expiring this month is still accepted.
// The month must be 1-12 and the two-digit year composes as 2000+yy;
// anything unparsable is reported as expired.
func ExpiryNotPastAt(mm, yy string, now time.Time) bool {
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return false
	}
	year, err := strconv.Atoi(yy)
	if err != nil || year < 0 || year > 99 {
		return false
	}
	loc := now.Location()
	expiry := time.Date(2000+year, time.Month(month), 1, 0, 0, 0, 0, loc)
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	return !expiry.Before(current)
}
