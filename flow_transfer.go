package checkout

import (
	"context"
	"time"
)

// GenerateBankDetails requests the bank-transfer destination for this
// payment. A missing transaction id is a hard stop: no request is sent.
func (w *Widget) GenerateBankDetails(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return NewStateError(msgWidgetClosed)
	}
	if w.method != MethodTransfer {
		w.mu.Unlock()
		return NewStateError("select the transfer payment method first")
	}
	if w.transactionID == "" {
		w.message = msgMissingTransaction
		w.mu.Unlock()
		err := NewStateError(msgMissingTransaction)
		w.reportError(err)
		return err
	}

	req := BankDetailsRequest{
		TransactionID: w.transactionID,
		Reference:     w.cfg.Reference,
		Method:        MethodTransfer,
		Amount:        w.cfg.Amount,
		Currency:      w.cfg.Currency,
		Customer:      w.cfg.Customer,
	}
	w.mu.Unlock()

	details, err := w.gateway.BankDetails(ctx, req)
	if err != nil {
		w.failRequest(err)
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.transfer.details = details
	w.transfer.step = TransferDetailsAvailable
	w.message = ""
	w.mu.Unlock()
	return nil
}

// VerifyTransfer checks whether the transfer has been received. Once
// verified the flag never reverts, and further calls are no-ops; calls
// during the cooldown window are also no-ops with no network activity. A
// pending result starts the cooldown.
func (w *Widget) VerifyTransfer(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return NewStateError(msgWidgetClosed)
	}
	if w.method != MethodTransfer {
		w.mu.Unlock()
		return NewStateError("select the transfer payment method first")
	}
	if w.transfer.step != TransferDetailsAvailable {
		w.mu.Unlock()
		return NewStateError("generate the bank details first")
	}
	if w.transfer.verified || w.transfer.cooldownRemaining > 0 {
		w.mu.Unlock()
		return nil
	}

	req := VerifyRequest{
		TransactionID: w.transactionID,
		Reference:     w.cfg.Reference,
	}
	w.mu.Unlock()

	resp, err := w.gateway.Verify(ctx, req)
	if err != nil {
		w.failRequest(err)
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}

	var failure *Error
	switch {
	case isSuccessStatus(resp.Status):
		w.transfer.verified = true
		w.stopCooldownLocked()
		w.message = resp.Message
		w.scheduleSuccessLocked(w.successPayloadLocked(MethodTransfer, resp))

	case resp.Status == StatusPending:
		w.message = orMessage(resp.Message, msgPaymentPending)
		w.startCooldownLocked()

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

// CopyAccountNumber copies the destination account number through the
// platform clipboard capability.
func (w *Widget) CopyAccountNumber() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return NewStateError(msgWidgetClosed)
	}
	if w.transfer.details == nil {
		w.mu.Unlock()
		return NewStateError("bank details are not available yet")
	}
	number := w.transfer.details.AccountNumber
	w.mu.Unlock()

	if err := w.opts.navigator.CopyText(number); err != nil {
		w.reportError(err)
		return err
	}
	return nil
}

// startCooldownLocked arms the verification cooldown and its display tick.
// The tick stops itself once the counter reaches zero. Caller holds w.mu.
func (w *Widget) startCooldownLocked() {
	w.transfer.cooldownRemaining = int(w.opts.verifyCooldown / time.Second)
	w.timers.startCooldown(func() {
		w.mu.Lock()
		if w.transfer.cooldownRemaining > 0 {
			w.transfer.cooldownRemaining--
		}
		done := w.transfer.cooldownRemaining == 0
		w.mu.Unlock()
		if done {
			w.timers.stopCooldown()
		}
	})
}