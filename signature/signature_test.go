package signature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignKeyOrderIndependent(t *testing.T) {
	t.Parallel()

	a := map[string]any{
		"amount":   500000,
		"currency": "NGN",
		"customer": map[string]any{"first_name": "Ada", "last_name": "Obi"},
	}
	b := map[string]any{
		"customer": map[string]any{"last_name": "Obi", "first_name": "Ada"},
		"currency": "NGN",
		"amount":   500000,
	}
	assert.Equal(t, Sign("initialize", "pk_test", a), Sign("initialize", "pk_test", b))
}

func TestSignDropsUnserializableFields(t *testing.T) {
	t.Parallel()

	withFunc := map[string]any{"a": func() {}, "b": 2}
	without := map[string]any{"b": 2}
	assert.Equal(t, Sign("e", "pk", without), Sign("e", "pk", withFunc))
}

func TestSignDistinguishesPayloads(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		endpoint, key string
		body          any
	}{
		"different body":     {"initialize", "pk", map[string]any{"amount": 200}},
		"different endpoint": {"pay", "pk", map[string]any{"amount": 100}},
		"different key":      {"initialize", "pk_live", map[string]any{"amount": 100}},
	}
	base := Sign("initialize", "pk", map[string]any{"amount": 100})
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, base, Sign(tt.endpoint, tt.key, tt.body))
		})
	}
}

func TestSignTerminatesOnCycles(t *testing.T) {
	t.Parallel()

	cyclic := map[string]any{"amount": 100}
	cyclic["self"] = cyclic

	first := Sign("initialize", "pk", cyclic)
	second := Sign("initialize", "pk", cyclic)
	require.Equal(t, first, second)
	assert.Contains(t, first, CircularSentinel)
}

func TestSignStructsMatchEquivalentMaps(t *testing.T) {
	t.Parallel()

	type body struct {
		Amount   int    `json:"amount"`
		Currency string `json:"currency"`
		Note     string `json:"note,omitempty"`
	}
	got := Sign("e", "pk", body{Amount: 100, Currency: "NGN"})
	want := Sign("e", "pk", map[string]any{"amount": 100, "currency": "NGN"})
	assert.Equal(t, want, got)
}

func TestCanonicalDates(t *testing.T) {
	t.Parallel()

	lagos := time.FixedZone("WAT", 3600)
	utc := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	local := utc.In(lagos)
	assert.Equal(t,
		Canonical(map[string]any{"at": utc}),
		Canonical(map[string]any{"at": local}),
	)
}
