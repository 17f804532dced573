package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/graypay/checkout-go/signature"
)

// FlowState is the top-level lifecycle state of a widget instance.
type FlowState string

// Defines values for FlowState.
const (
	FlowIdle         FlowState = "idle"
	FlowInitializing FlowState = "initializing"
	FlowInitFailed   FlowState = "init_failed"
	FlowReady        FlowState = "ready"
)

// CardStep numbers the card collection steps.
type CardStep int

// Defines values for CardStep.
const (
	CardStepDetails CardStep = 1 // number, expiry, CVV
	CardStepAuth    CardStep = 2 // PIN and submission
)

// CardAuthStage is the card authorization sub-state. Exactly one is active
// at a time; transitions are driven solely by the most recent gateway
// response.
type CardAuthStage string

// Defines values for CardAuthStage.
const (
	CardAuthNone     CardAuthStage = "none"
	CardAuthOTP      CardAuthStage = "otp"
	CardAuthRedirect CardAuthStage = "redirect"
	CardAuthSuccess  CardAuthStage = "success"
)

// TransferStep is the bank-transfer sub-state.
type TransferStep string

// Defines values for TransferStep.
const (
	TransferAwaitingGeneration TransferStep = "awaiting_generation"
	TransferDetailsAvailable   TransferStep = "details_available"
)

// User-facing messages for client-side refusals and gateway outcomes.
const (
	msgInvalidNumber      = "Enter a valid card number."
	msgExpiredCard        = "Card expiry date is in the past."
	msgInvalidCVV         = "CVV must be at least 3 digits."
	msgInvalidPIN         = "Card PIN must be exactly 4 digits."
	msgMissingTransaction = "Payment has not been initialized yet."
	msgMissingRedirectURL = "The gateway requested a redirect without a destination."
	msgGenericFailure     = "Payment could not be completed. Please try again."
	msgNetworkFailure     = "A network error occurred. Please try again."
	msgInitFailure        = "Payment could not be set up. Please retry."
	msgWidgetClosed       = "The checkout widget has been closed."
	msgOTPPrompt          = "Enter the one-time password sent to you."
	msgPaymentPending     = "Your payment is pending confirmation."
)

type cardState struct {
	step              CardStep
	stage             CardAuthStage
	details           CardDetails
	redirectURL       string
	redirectRemaining int
}

type transferState struct {
	step              TransferStep
	details           *BankTransferDetails
	verified          bool
	cooldownRemaining int
}

// Widget orchestrates one mounted checkout instance. All exported methods
// are safe for concurrent use; state transitions are strictly ordered by the
// completion order of their triggering operation.
type Widget struct {
	cfg     PaymentConfiguration
	gateway GatewayClient
	opts    config
	timers  *timerSet
	logger  *zap.Logger

	mu            sync.Mutex
	state         FlowState
	method        Method
	card          cardState
	transfer      transferState
	transactionID string
	initRaw       json.RawMessage
	lastInitSig   string
	initGen       int
	message       string
	closed        bool
}

// New validates the configuration and mounts a widget. An empty reference
// is filled in with an auto-generated one. The gateway is required.
func New(cfg PaymentConfiguration, gateway GatewayClient, opts ...Option) (*Widget, error) {
	if gateway == nil {
		panic("checkout: gateway is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Reference == "" {
		cfg.Reference = NewReference()
	}

	wcfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&wcfg)
	}

	return &Widget{
		cfg:     cfg,
		gateway: gateway,
		opts:    wcfg,
		timers:  newTimerSet(wcfg.scheduler),
		logger:  wcfg.logger,
		state:   FlowIdle,
		method:  MethodCard,
		card:    cardState{step: CardStepDetails, stage: CardAuthNone},
		transfer: transferState{
			step: TransferAwaitingGeneration,
		},
	}, nil
}

// Snapshot is a point-in-time copy of the widget state for rendering.
type Snapshot struct {
	State            FlowState
	Method           Method
	Message          string
	TransactionID    string
	CardStep         CardStep
	CardStage        CardAuthStage
	RedirectURL      string
	RedirectSeconds  int
	TransferStep     TransferStep
	TransferDetails  *BankTransferDetails
	TransferVerified bool
	CooldownSeconds  int
}

// Snapshot returns the current state for rendering.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		State:            w.state,
		Method:           w.method,
		Message:          w.message,
		TransactionID:    w.transactionID,
		CardStep:         w.card.step,
		CardStage:        w.card.stage,
		RedirectURL:      w.card.redirectURL,
		RedirectSeconds:  w.card.redirectRemaining,
		TransferStep:     w.transfer.step,
		TransferDetails:  w.transfer.details,
		TransferVerified: w.transfer.verified,
		CooldownSeconds:  w.transfer.cooldownRemaining,
	}
}

// Reference returns the payment reference for this instance.
func (w *Widget) Reference() string {
	return w.cfg.Reference
}

// EnsureInitialized initializes the payment against the gateway. It is safe
// to call on every host re-render: a configuration whose signature already
// initialized successfully is a no-op, and concurrent calls sharing a
// signature coalesce onto one network request through the dedup store. A
// result arriving after teardown, or after a newer configuration superseded
// it, is discarded.
func (w *Widget) EnsureInitialized(ctx context.Context) error {
	req := w.initializeRequest()
	sig := signature.Sign(endpointInitialize, w.cfg.PublicKey, req)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return NewStateError(msgWidgetClosed)
	}
	if w.state == FlowReady && w.lastInitSig == sig {
		w.mu.Unlock()
		return nil
	}
	w.initGen++
	gen := w.initGen
	w.state = FlowInitializing
	w.lastInitSig = sig
	w.message = ""
	w.mu.Unlock()

	resp, shared, err := w.opts.store.GetOrCreate(sig, func() (*GatewayResponse, error) {
		return w.gateway.Initialize(ctx, req)
	})
	if shared {
		w.logger.Debug("initialization coalesced onto in-flight call",
			zap.String("reference", w.cfg.Reference),
		)
	}

	w.mu.Lock()
	if w.closed || gen != w.initGen {
		// Torn down or superseded while in flight; discard the result.
		w.mu.Unlock()
		return nil
	}
	if err != nil {
		w.state = FlowInitFailed
		w.message = messageFromError(err, msgInitFailure)
		w.mu.Unlock()
		w.reportError(err)
		return err
	}
	w.state = FlowReady
	w.transactionID = resp.TransactionID()
	w.initRaw = resp.Raw
	w.mu.Unlock()

	w.logger.Info("payment initialized",
		zap.String("reference", w.cfg.Reference),
		zap.String("transaction_id", resp.TransactionID()),
	)
	return nil
}

// Retry re-triggers the signature-deduplicated initialization after a
// failure.
func (w *Widget) Retry(ctx context.Context) error {
	w.mu.Lock()
	w.lastInitSig = ""
	w.mu.Unlock()
	return w.EnsureInitialized(ctx)
}

// UpdateConfiguration swaps in a new configuration and re-initializes when
// the identity tuple changed. The existing reference is kept unless the new
// configuration carries an explicit one.
func (w *Widget) UpdateConfiguration(ctx context.Context, cfg PaymentConfiguration) error {
	if cfg.Reference == "" {
		cfg.Reference = w.cfg.Reference
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return NewStateError(msgWidgetClosed)
	}
	w.cfg = cfg
	w.mu.Unlock()
	return w.EnsureInitialized(ctx)
}

// SelectMethod switches the active payment method, fully resetting the card
// auth sub-state and cancelling every scoped timer.
func (w *Widget) SelectMethod(method Method) error {
	if method != MethodCard && method != MethodTransfer {
		return NewValidationError("method", "unsupported payment method")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return NewStateError(msgWidgetClosed)
	}
	if w.method == method {
		return nil
	}
	w.method = method
	w.message = ""
	w.resetCardAuthLocked()
	w.stopCooldownLocked()
	w.timers.stopSuccess()
	return nil
}

// Close tears the widget down: every timer is cancelled synchronously and
// any in-flight result is prevented from mutating state afterwards.
func (w *Widget) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.card.redirectRemaining = 0
	w.transfer.cooldownRemaining = 0
	w.mu.Unlock()
	w.timers.stopAll()
}

func (w *Widget) initializeRequest() InitializeRequest {
	return InitializeRequest{
		PublicKey:   w.cfg.PublicKey,
		Amount:      w.cfg.Amount,
		Currency:    w.cfg.Currency,
		Reference:   w.cfg.Reference,
		CallbackURL: w.cfg.CallbackURL,
		Customer:    w.cfg.Customer,
		CustomData:  w.cfg.CustomData,
	}
}

// resetCardAuthLocked clears the auth sub-state and its timers. Caller holds
// w.mu.
func (w *Widget) resetCardAuthLocked() {
	w.card.stage = CardAuthNone
	w.card.redirectURL = ""
	w.card.redirectRemaining = 0
	w.timers.stopRedirect()
}

// stopCooldownLocked cancels the cooldown tick and clears the counter so a
// later attempt is not blocked by a dead timer. Caller holds w.mu.
func (w *Widget) stopCooldownLocked() {
	w.transfer.cooldownRemaining = 0
	w.timers.stopCooldown()
}

// scheduleSuccessLocked arms the delayed success callback, replacing any
// still-pending one. Caller holds w.mu.
func (w *Widget) scheduleSuccessLocked(payload SuccessPayload) {
	cb := w.opts.onSuccess
	w.timers.armSuccess(w.opts.successDelay, func() {
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if closed || cb == nil {
			return
		}
		cb(payload)
	})
}

// successPayloadLocked assembles the final payload, merging the raw
// initialization response with the settling response. Caller holds w.mu.
func (w *Widget) successPayloadLocked(method Method, resp *GatewayResponse) SuccessPayload {
	raw := w.initRaw
	if resp != nil && len(resp.Raw) > 0 {
		raw = resp.Raw
		if len(w.initRaw) > 0 {
			if merged, err := runtime.JSONMerge(w.initRaw, resp.Raw); err == nil {
				raw = merged
			}
		}
	}
	payload := SuccessPayload{
		Reference:     w.cfg.Reference,
		TransactionID: w.transactionID,
		Method:        method,
		Amount:        w.cfg.Amount,
		Currency:      w.cfg.Currency,
		Raw:           raw,
	}
	if resp != nil {
		payload.Card = resp.Card
	}
	return payload
}

// reportError logs the failure and invokes the caller's error hook with the
// raw underlying error. Never called with w.mu held.
func (w *Widget) reportError(err error) {
	if err == nil {
		return
	}
	w.logger.Warn("checkout error",
		zap.String("reference", w.cfg.Reference),
		zap.Error(err),
	)
	if w.opts.onError != nil {
		w.opts.onError(err)
	}
}

// messageFromError picks the user-facing message for err, preferring the
// structured message when present.
func messageFromError(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
