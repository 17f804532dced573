package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/graypay/checkout-go/card"
)

// AdvanceToAuth stores the collected card details and moves from the
// details step to the authorization step. The number, expiry, and CVV are
// gated here, in that order.
func (w *Widget) AdvanceToAuth(details CardDetails) error {
	w.mu.Lock()
	if err := w.cardGuardLocked(); err != nil {
		w.mu.Unlock()
		return err
	}

	var verr *Error
	switch {
	case !card.Valid(details.sanitizedNumber()):
		verr = NewValidationError("number", msgInvalidNumber)
	case !card.ExpiryNotPastAt(details.ExpMonth, details.ExpYear, w.opts.clock()):
		verr = NewValidationError("expiry", msgExpiredCard)
	case len(details.CVV) < 3 || !isDigits(details.CVV):
		verr = NewValidationError("cvv", msgInvalidCVV)
	}
	if verr != nil {
		w.message = verr.Message
		w.mu.Unlock()
		w.reportError(verr)
		return verr
	}

	w.card.details = details
	w.card.step = CardStepAuth
	w.message = ""
	w.mu.Unlock()
	return nil
}

// BackToDetails returns to the details step, fully resetting the auth
// sub-state and cancelling any redirect timers. The card data stays in
// memory for this instance.
func (w *Widget) BackToDetails() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return NewStateError(msgWidgetClosed)
	}
	w.card.step = CardStepDetails
	w.message = ""
	w.resetCardAuthLocked()
	return nil
}

// SubmitCard submits the card payment. Submission is refused client-side
// with a specific message per failing field, checked in order: number, then
// expiry, then PIN.
func (w *Widget) SubmitCard(ctx context.Context) error {
	w.mu.Lock()
	if err := w.cardGuardLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.card.step != CardStepAuth {
		w.mu.Unlock()
		return NewStateError("complete the card details step first")
	}
	if w.card.stage == CardAuthOTP {
		w.mu.Unlock()
		return NewStateError("a one-time password is pending verification")
	}
	if w.transactionID == "" {
		w.message = msgMissingTransaction
		w.mu.Unlock()
		err := NewStateError(msgMissingTransaction)
		w.reportError(err)
		return err
	}

	details := w.card.details
	var verr *Error
	switch {
	case !card.Valid(details.sanitizedNumber()):
		verr = NewValidationError("number", msgInvalidNumber)
	case !card.ExpiryNotPastAt(details.ExpMonth, details.ExpYear, w.opts.clock()):
		verr = NewValidationError("expiry", msgExpiredCard)
	case len(details.PIN) != 4 || !isDigits(details.PIN):
		verr = NewValidationError("pin", msgInvalidPIN)
	}
	if verr != nil {
		w.message = verr.Message
		w.mu.Unlock()
		w.reportError(verr)
		return verr
	}

	req := PayRequest{
		TransactionID: w.transactionID,
		Reference:     w.cfg.Reference,
		Method:        MethodCard,
		Amount:        w.cfg.Amount,
		Currency:      w.cfg.Currency,
		Customer:      w.cfg.Customer,
		CustomData:    w.cfg.CustomData,
		Card: &CardPayload{
			Number: details.sanitizedNumber(),
			Expiry: details.expiry(),
			CVV:    details.CVV,
			PIN:    details.PIN,
		},
	}
	w.mu.Unlock()

	resp, err := w.gateway.Pay(ctx, req)
	if err != nil {
		w.failRequest(err)
		return err
	}
	return w.applyCardResponse(resp, false)
}

// SubmitOTP sends one verification attempt for the pending one-time
// password. A "pending" verification result re-enters the OTP stage rather
// than staying neutral.
func (w *Widget) SubmitOTP(ctx context.Context, code string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return NewStateError(msgWidgetClosed)
	}
	if w.card.stage != CardAuthOTP {
		w.mu.Unlock()
		return NewStateError("no one-time password is expected right now")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		verr := NewValidationError("otp", msgOTPPrompt)
		w.message = verr.Message
		w.mu.Unlock()
		w.reportError(verr)
		return verr
	}

	req := VerifyOTPRequest{
		TransactionID: w.transactionID,
		Reference:     w.cfg.Reference,
		Method:        MethodCard,
		OTP:           code,
	}
	w.mu.Unlock()

	resp, err := w.gateway.VerifyOTP(ctx, req)
	if err != nil {
		w.failRequest(err)
		return err
	}
	return w.applyCardResponse(resp, true)
}

// NavigateNow follows the pending redirect immediately, short-circuiting
// the countdown.
func (w *Widget) NavigateNow() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return NewStateError(msgWidgetClosed)
	}
	if w.card.stage != CardAuthRedirect {
		w.mu.Unlock()
		return NewStateError("no redirect is pending")
	}
	url := w.card.redirectURL
	w.card.redirectRemaining = 0
	w.timers.stopRedirect()
	w.mu.Unlock()

	if err := w.opts.navigator.Navigate(url); err != nil {
		w.reportError(err)
		return err
	}
	return nil
}

// cardGuardLocked rejects card actions that lack the required prior state.
// Caller holds w.mu.
func (w *Widget) cardGuardLocked() error {
	if w.closed {
		return NewStateError(msgWidgetClosed)
	}
	if w.method != MethodCard {
		return NewStateError("select the card payment method first")
	}
	if w.state != FlowReady {
		return NewStateError(msgMissingTransaction)
	}
	if w.card.stage == CardAuthSuccess {
		return NewStateError("this payment has already completed")
	}
	return nil
}

// applyCardResponse classifies a pay or verify-otp response and drives the
// auth sub-state. fromOTP distinguishes the one asymmetry: a pending
// verification result re-enters the OTP stage, while a pending payment
// result stays put.
func (w *Widget) applyCardResponse(resp *GatewayResponse, fromOTP bool) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}

	var failure *Error
	switch {
	case resp.NextAction == NextActionOTP:
		w.card.stage = CardAuthOTP
		w.message = orMessage(resp.Message, msgOTPPrompt)

	case resp.NextAction == NextActionRedirect:
		if resp.RedirectURL == "" {
			// Terminal for this attempt: stay put and surface the error.
			failure = NewProtocolError(msgMissingRedirectURL)
			w.message = failure.Message
			break
		}
		w.enterRedirectLocked(resp.RedirectURL)

	case isSuccessStatus(resp.Status):
		w.timers.stopRedirect()
		w.card.redirectURL = ""
		w.card.redirectRemaining = 0
		w.card.stage = CardAuthSuccess
		w.message = resp.Message
		w.scheduleSuccessLocked(w.successPayloadLocked(MethodCard, resp))

	case resp.Status == StatusPending:
		if fromOTP {
			w.card.stage = CardAuthOTP
		}
		w.message = orMessage(resp.Message, msgPaymentPending)

	default:
		w.message = orMessage(resp.Message, msgGenericFailure)
		failure = NewProtocolError(w.message)
	}
	w.mu.Unlock()

	if failure != nil {
		w.reportError(failure)
		return failure
	}
	return nil
}

// enterRedirectLocked arms the countdown display tick and the auto-navigate
// one-shot, both derived from the configured redirect delay. Caller holds
// w.mu.
func (w *Widget) enterRedirectLocked(url string) {
	w.card.stage = CardAuthRedirect
	w.card.redirectURL = url
	w.card.redirectRemaining = int(w.opts.redirectDelay / time.Second)
	w.message = ""
	w.timers.startRedirect(w.opts.redirectDelay,
		func() {
			w.mu.Lock()
			if w.card.redirectRemaining > 0 {
				w.card.redirectRemaining--
			}
			w.mu.Unlock()
		},
		w.autoNavigate,
	)
}

func (w *Widget) autoNavigate() {
	w.mu.Lock()
	if w.closed || w.card.stage != CardAuthRedirect {
		w.mu.Unlock()
		return
	}
	url := w.card.redirectURL
	w.card.redirectRemaining = 0
	w.mu.Unlock()

	if err := w.opts.navigator.Navigate(url); err != nil {
		w.reportError(err)
	}
}

// failRequest records a transport failure without transitioning state.
func (w *Widget) failRequest(err error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.message = messageFromError(err, msgNetworkFailure)
	w.mu.Unlock()
	w.reportError(err)
}

func orMessage(message, fallback string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return fallback
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
