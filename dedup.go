package checkout

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	initCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_initialize_calls_total",
		Help: "Initialization requests issued to the gateway",
	})

	initDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_initialize_deduped_total",
		Help: "Initialization requests coalesced onto an in-flight call",
	})
)

// InitStore coalesces concurrent initialization calls that share a request
// signature, so a re-render storm over an unchanged configuration issues at
// most one network call. Entries self-remove once the underlying call
// settles; a later call with the same signature starts fresh.
//
// The zero store is not usable; construct with [NewInitStore]. Widgets share
// the process-wide default unless a lifecycle-scoped store is injected with
// [WithInitStore].
type InitStore struct {
	mu    sync.Mutex
	group *singleflight.Group
}

// NewInitStore creates an empty deduplication store.
func NewInitStore() *InitStore {
	return &InitStore{group: new(singleflight.Group)}
}

var defaultInitStore = NewInitStore()

// GetOrCreate returns the settled result for sig, invoking factory only when
// no call for that signature is outstanding. shared reports whether the
// result was served to more than one caller.
func (s *InitStore) GetOrCreate(sig string, factory func() (*GatewayResponse, error)) (resp *GatewayResponse, shared bool, err error) {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()

	v, err, shared := group.Do(sig, func() (any, error) {
		initCallsTotal.Inc()
		return factory()
	})
	if shared {
		initDedupedTotal.Inc()
	}
	resp, _ = v.(*GatewayResponse)
	return resp, shared, err
}

// Reset drops every outstanding entry. Tests call it between cases; callers
// already waiting on an old entry still receive that entry's result.
func (s *InitStore) Reset() {
	s.mu.Lock()
	s.group = new(singleflight.Group)
	s.mu.Unlock()
}
