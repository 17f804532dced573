// Package server implements the backend endpoint that validates checkout
// payloads before forwarding them to the payment gateway. It repeats the
// client-side Luhn, brand, and expiry checks, masks card data, and never
// logs or stores the full card number, CVV, or PIN; only a hash fingerprint
// of the derived gateway token is recorded.
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	checkout "github.com/graypay/checkout-go"
	"github.com/graypay/checkout-go/card"
)

// Environments in which the HTTPS requirement for card operations is
// relaxed.
var developmentEnvironments = map[string]bool{
	"development": true,
	"local":       true,
	"test":        true,
}

// API wires the validate-and-forward routes to a gateway client.
type API struct {
	gateway     checkout.GatewayClient
	logger      *zap.Logger
	auth        Authenticator
	environment string
}

// Option customizes the API behavior.
type Option func(*API)

// WithLogger sets the structured audit logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAuthenticator enables Authorization header API key validation.
func WithAuthenticator(auth Authenticator) Option {
	return func(a *API) {
		a.auth = auth
	}
}

// WithEnvironment names the deployment environment; card operations outside
// development environments require HTTPS.
func WithEnvironment(environment string) Option {
	return func(a *API) {
		a.environment = strings.ToLower(strings.TrimSpace(environment))
	}
}

// New builds the API backed by the given gateway client.
func New(gateway checkout.GatewayClient, opts ...Option) *API {
	if gateway == nil {
		panic("server: gateway is required")
	}
	a := &API{
		gateway:     gateway,
		logger:      zap.NewNop(),
		environment: "production",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(a)
	}
	return a
}

// Routes returns the chi router for mounting.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(withRequestMeta)
	if a.auth != nil {
		r.Use(a.requireAPIKey)
	}
	r.Route("/payments", func(r chi.Router) {
		r.Post("/initialize", a.initializePayment)
		r.With(a.requireHTTPS).Post("/pay", a.payWithCard)
	})
	return r
}

// InitializePaymentResponse acknowledges a validated and forwarded
// initialization.
type InitializePaymentResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
}

func (a *API) initializePayment(w http.ResponseWriter, r *http.Request) {
	var req checkout.InitializeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, checkout.NewValidationError("", err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	resp, err := a.gateway.Initialize(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	transactionID := resp.TransactionID()
	if transactionID == "" {
		transactionID = "txn_" + uuid.NewString()
	}

	a.logger.Info("payment initialized",
		zap.String("request_id", metaFromContext(r.Context()).RequestID),
		zap.String("reference", req.Reference),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency),
		zap.String("transaction_id", transactionID),
	)

	writeJSON(w, http.StatusOK, InitializePaymentResponse{
		Status:        "success",
		TransactionID: transactionID,
		Reference:     req.Reference,
	})
}

// PayCardResponse carries the gateway outcome plus masked card metadata.
type PayCardResponse struct {
	Status      string                `json:"status"`
	NextAction  checkout.NextAction   `json:"next_action,omitempty"`
	Message     string                `json:"message,omitempty"`
	RedirectURL string                `json:"redirect_url,omitempty"`
	Card        *checkout.CardSummary `json:"card,omitempty"`
}

func (a *API) payWithCard(w http.ResponseWriter, r *http.Request) {
	var req checkout.PayRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, checkout.NewValidationError("", err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if req.Method != checkout.MethodCard || req.Card == nil {
		writeError(w, checkout.NewValidationError("method", "card payments only"))
		return
	}

	digits := sanitizePAN(req.Card.Number)
	brand := card.DetectBrand(digits)
	if !card.Valid(digits) {
		writeError(w, checkout.NewValidationError("card.number", "card number failed validation"))
		return
	}
	mm, yy, ok := strings.Cut(req.Card.Expiry, "/")
	if !ok || !card.ExpiryNotPast(mm, yy) {
		writeError(w, checkout.NewValidationError("card.expiry", "card expiry is invalid or in the past"))
		return
	}

	summary := &checkout.CardSummary{
		Brand: string(brand),
		Last4: digits[len(digits)-4:],
	}

	// Only the fingerprint of the derived token is ever logged or stored.
	a.logger.Info("card payment forwarded",
		zap.String("request_id", metaFromContext(r.Context()).RequestID),
		zap.String("reference", req.Reference),
		zap.String("brand", summary.Brand),
		zap.String("last4", summary.Last4),
		zap.String("token_fingerprint", tokenFingerprint(digits, req.Card.Expiry)),
	)

	resp, err := a.gateway.Pay(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PayCardResponse{
		Status:      resp.Status,
		NextAction:  resp.NextAction,
		Message:     resp.Message,
		RedirectURL: resp.RedirectURL,
		Card:        summary,
	})
}

// requireHTTPS rejects card operations over plain HTTP outside development
// environments with an upgrade-required signal.
func (a *API) requireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if developmentEnvironments[a.environment] || requestIsSecure(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Upgrade", "TLS/1.2")
		writeStatusError(w, http.StatusUpgradeRequired,
			checkout.NewStateError("HTTPS is required for card operations"))
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := metaFromContext(r.Context()).ForwardedProto
	if proto == "" {
		proto, _, _ = strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

func sanitizePAN(number string) string {
	return strings.Map(func(c rune) rune {
		if c == ' ' || c == '-' {
			return -1
		}
		return c
	}, number)
}

// tokenFingerprint hashes the derived gateway token for audit correlation.
// The token itself is a one-way derivation; the PAN is not recoverable from
// the logged value.
func tokenFingerprint(digits, expiry string) string {
	token := sha256.Sum256([]byte("graypay-token:" + digits + "|" + expiry))
	fingerprint := sha256.Sum256(token[:])
	return hex.EncodeToString(fingerprint[:])
}
