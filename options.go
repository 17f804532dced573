package checkout

import (
	"time"

	"go.uber.org/zap"
)

// Defaults for the widget's timer durations.
const (
	DefaultSuccessDelay   = 3 * time.Second
	DefaultRedirectDelay  = 5 * time.Second
	DefaultVerifyCooldown = 60 * time.Second
)

type config struct {
	logger         *zap.Logger
	scheduler      Scheduler
	navigator      Navigator
	store          *InitStore
	clock          func() time.Time
	successDelay   time.Duration
	redirectDelay  time.Duration
	verifyCooldown time.Duration
	onSuccess      func(SuccessPayload)
	onError        func(error)
}

func defaultConfig() config {
	return config{
		logger:         zap.NewNop(),
		scheduler:      systemScheduler{},
		navigator:      NopNavigator{},
		store:          defaultInitStore,
		clock:          time.Now,
		successDelay:   DefaultSuccessDelay,
		redirectDelay:  DefaultRedirectDelay,
		verifyCooldown: DefaultVerifyCooldown,
	}
}

// Option customizes the widget behavior.
type Option func(*config)

// WithLogger sets the structured logger. Card numbers, CVVs, PINs, and OTP
// codes never appear in log fields.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithScheduler substitutes the timer capability; tests inject a
// deterministic implementation.
func WithScheduler(scheduler Scheduler) Option {
	return func(cfg *config) {
		if scheduler != nil {
			cfg.scheduler = scheduler
		}
	}
}

// WithNavigator substitutes the navigation and clipboard capability.
func WithNavigator(navigator Navigator) Option {
	return func(cfg *config) {
		if navigator != nil {
			cfg.navigator = navigator
		}
	}
}

// WithInitStore scopes initialization deduplication to the given store
// instead of the process-wide default.
func WithInitStore(store *InitStore) Option {
	return func(cfg *config) {
		if store != nil {
			cfg.store = store
		}
	}
}

// WithSuccessDelay sets how long after a settled payment the success
// callback fires. Negative values clamp to zero.
func WithSuccessDelay(d time.Duration) Option {
	return func(cfg *config) {
		if d < 0 {
			d = 0
		}
		cfg.successDelay = d
	}
}

// WithRedirectDelay sets the single duration both the redirect countdown
// display and the automatic navigation derive from.
func WithRedirectDelay(d time.Duration) Option {
	if d <= 0 {
		panic("checkout: redirect delay must be positive")
	}
	return func(cfg *config) {
		cfg.redirectDelay = d
	}
}

// WithVerifyCooldown sets the enforced wait between repeated transfer
// verification attempts after a pending result.
func WithVerifyCooldown(d time.Duration) Option {
	if d <= 0 {
		panic("checkout: verify cooldown must be positive")
	}
	return func(cfg *config) {
		cfg.verifyCooldown = d
	}
}

// OnSuccess registers the success callback. It receives the final payload
// exactly once per settled payment, after the configured delay.
func OnSuccess(fn func(SuccessPayload)) Option {
	return func(cfg *config) {
		cfg.onSuccess = fn
	}
}

// OnError registers the error hook. It receives the raw underlying error
// for caller-side handling; the widget additionally surfaces a message.
func OnError(fn func(error)) Option {
	return func(cfg *config) {
		cfg.onError = fn
	}
}

// withClock provides deterministic time in tests.
func withClock(fn func() time.Time) Option {
	return func(cfg *config) {
		cfg.clock = fn
	}
}
