package checkout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Method selects the payment sub-flow.
type Method string

// Defines values for Method.
const (
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
)

// NextAction is the gateway-supplied directive telling the client which
// continuation sub-flow to enter.
type NextAction string

// Defines values for NextAction.
const (
	NextActionNone     NextAction = ""
	NextActionOTP      NextAction = "otp"
	NextActionRedirect NextAction = "redirect"
)

// StatusPending marks a gateway response that is neither settled nor failed.
const StatusPending = "pending"

// successStatuses are the gateway status values that settle a payment.
var successStatuses = map[string]bool{
	"successful": true,
	"success":    true,
	"confirmed":  true,
}

func isSuccessStatus(status string) bool {
	return successStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// Customer identifies the paying customer.
type Customer struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
}

// PaymentConfiguration is the immutable per-mount configuration of a widget.
// Changing the amount, currency, customer, public key, callback URL,
// reference, or custom data forces re-initialization.
type PaymentConfiguration struct {
	PublicKey   string         `json:"public_key" validate:"required"`
	Amount      int64          `json:"amount" validate:"required,gte=100"` // integer minor units
	Currency    string         `json:"currency" validate:"required,currency"`
	Customer    Customer       `json:"customer" validate:"required"`
	CallbackURL string         `json:"callback_url" validate:"required,url"`
	CustomData  map[string]any `json:"custom_data,omitempty"`
	// Reference is auto-generated at mount when empty.
	Reference string `json:"reference,omitempty"`
}

// NewReference generates a payment reference in the GR-<timestamp>-<random6>
// format.
func NewReference() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("GR-%d-%s", time.Now().UnixMilli(), suffix)
}

// CardDetails holds the raw card input collected from the user. It never
// leaves the widget instance except inside a gateway pay request.
type CardDetails struct {
	Number   string
	ExpMonth string // MM
	ExpYear  string // YY
	CVV      string
	PIN      string
}

func (d CardDetails) expiry() string {
	return d.ExpMonth + "/" + d.ExpYear
}

// sanitizedNumber strips the spaces and dashes display formatting inserts.
func (d CardDetails) sanitizedNumber() string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, d.Number)
}

// InitializeRequest is the POST /initialize payload.
type InitializeRequest struct {
	PublicKey   string         `json:"public_key" validate:"required"`
	Amount      int64          `json:"amount" validate:"required,gte=100"`
	Currency    string         `json:"currency" validate:"required,currency"`
	Reference   string         `json:"reference" validate:"required"`
	CallbackURL string         `json:"callback_url" validate:"required,url"`
	Customer    Customer       `json:"customer" validate:"required"`
	CustomData  map[string]any `json:"custom_data,omitempty"`
}

// CardPayload is the card block inside a pay request.
type CardPayload struct {
	Number string `json:"number" validate:"required,numeric"`
	Expiry string `json:"expiry" validate:"required"` // MM/YY
	CVV    string `json:"cvv" validate:"required,min=3,numeric"`
	PIN    string `json:"pin" validate:"required,len=4,numeric"`
}

// PayRequest is the POST /pay payload.
type PayRequest struct {
	TransactionID string         `json:"transaction_id" validate:"required"`
	Reference     string         `json:"reference" validate:"required"`
	Method        Method         `json:"method" validate:"required,oneof=card transfer"`
	Amount        int64          `json:"amount" validate:"required,gte=100"`
	Currency      string         `json:"currency" validate:"required,currency"`
	Customer      Customer       `json:"customer" validate:"required"`
	CustomData    map[string]any `json:"custom_data,omitempty"`
	Card          *CardPayload   `json:"card,omitempty" validate:"omitempty"`
}

// VerifyOTPRequest is the POST /verify-otp payload.
type VerifyOTPRequest struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	Method        Method `json:"method"`
	OTP           string `json:"otp"`
}

// BankDetailsRequest is the POST /bank-details payload.
type BankDetailsRequest struct {
	TransactionID string   `json:"transaction_id"`
	Reference     string   `json:"reference"`
	Method        Method   `json:"method"`
	Amount        int64    `json:"amount"`
	Currency      string   `json:"currency"`
	Customer      Customer `json:"customer"`
}

// VerifyRequest is the POST /verify payload.
type VerifyRequest struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
}

// CardSummary is the masked card metadata the gateway echoes back.
type CardSummary struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// GatewayResponse is the normalized envelope for pay, verify-otp, and verify
// responses. Raw retains the exact response bytes.
type GatewayResponse struct {
	Status      string       `json:"status"`
	NextAction  NextAction   `json:"next_action"`
	Message     string       `json:"message"`
	RedirectURL string       `json:"redirect_url"`
	Card        *CardSummary `json:"card,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the envelope while retaining the raw bytes.
func (r *GatewayResponse) UnmarshalJSON(data []byte) error {
	type envelope GatewayResponse
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*r = GatewayResponse(env)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// transactionIDKeys is the single auditable precedence contract for the
// transaction identifier across the response shapes the gateway emits.
var transactionIDKeys = []string{"transaction_id", "transactionId", "id", "reference"}

// TransactionID extracts the transaction identifier from the first present
// field among the accepted response shapes. Absence of all of them yields
// the empty string, which does not itself fail initialization.
func (r *GatewayResponse) TransactionID() string {
	if r == nil || len(r.Raw) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(r.Raw, &fields); err != nil {
		return ""
	}
	for _, key := range transactionIDKeys {
		if s := stringField(fields, key); s != "" {
			return s
		}
	}
	return ""
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// BankTransferDetails is the normalized bank-transfer destination.
type BankTransferDetails struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	Reference     string `json:"reference"`
}

// bankDetailsEnvelope tolerates the two container keys and the camelCase or
// snake_case field spellings the gateway has shipped over time. camelCase
// wins when both are present.
type bankDetailsEnvelope struct {
	BankTransfer map[string]any `json:"bankTransfer"`
	Bank         map[string]any `json:"bank"`
}

func (e bankDetailsEnvelope) details() *BankTransferDetails {
	container := e.BankTransfer
	if container == nil {
		container = e.Bank
	}
	if container == nil {
		return nil
	}
	return &BankTransferDetails{
		BankName:      firstString(container, "bankName", "bank_name"),
		AccountName:   firstString(container, "accountName", "account_name"),
		AccountNumber: firstString(container, "accountNumber", "account_number"),
		Reference:     firstString(container, "referenceCode", "reference"),
	}
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(fields, key); s != "" {
			return s
		}
	}
	return ""
}

// SuccessPayload is delivered to the success callback exactly once per
// settled payment, after the configured delay.
type SuccessPayload struct {
	Reference     string          `json:"reference"`
	TransactionID string          `json:"transaction_id"`
	Method        Method          `json:"method"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	Card          *CardSummary    `json:"card,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}
