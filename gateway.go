package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GatewayClient is the transport boundary the orchestrator drives. All five
// operations are JSON over HTTPS and carry the caller's public key.
type GatewayClient interface {
	Initialize(ctx context.Context, req InitializeRequest) (*GatewayResponse, error)
	Pay(ctx context.Context, req PayRequest) (*GatewayResponse, error)
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*GatewayResponse, error)
	BankDetails(ctx context.Context, req BankDetailsRequest) (*BankTransferDetails, error)
	Verify(ctx context.Context, req VerifyRequest) (*GatewayResponse, error)
}

// Gateway endpoint descriptors; the request signature is built over these.
const (
	endpointInitialize  = "initialize"
	endpointPay         = "pay"
	endpointVerifyOTP   = "verify-otp"
	endpointBankDetails = "bank-details"
	endpointVerify      = "verify"
)

// HTTPGateway is the production GatewayClient.
type HTTPGateway struct {
	baseURL   string
	publicKey string
	client    *http.Client
	logger    *zap.Logger
}

// GatewayOption customizes the HTTP gateway.
type GatewayOption func(*HTTPGateway)

// WithGatewayHTTPClient substitutes the underlying HTTP client.
func WithGatewayHTTPClient(client *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithGatewayLogger sets the structured logger for transport events.
func WithGatewayLogger(logger *zap.Logger) GatewayOption {
	return func(g *HTTPGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewHTTPGateway builds a gateway client for the given base URL. The public
// key is sent as a bearer credential on every request.
func NewHTTPGateway(baseURL, publicKey string, opts ...GatewayOption) *HTTPGateway {
	g := &HTTPGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		publicKey: publicKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(g)
	}
	return g
}

// Initialize implements GatewayClient.
func (g *HTTPGateway) Initialize(ctx context.Context, req InitializeRequest) (*GatewayResponse, error) {
	var resp GatewayResponse
	if err := g.post(ctx, endpointInitialize, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pay implements GatewayClient.
func (g *HTTPGateway) Pay(ctx context.Context, req PayRequest) (*GatewayResponse, error) {
	var resp GatewayResponse
	if err := g.post(ctx, endpointPay, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyOTP implements GatewayClient.
func (g *HTTPGateway) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*GatewayResponse, error) {
	var resp GatewayResponse
	if err := g.post(ctx, endpointVerifyOTP, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BankDetails implements GatewayClient. The response container and field
// spellings are normalized; a response with neither container is a protocol
// error.
func (g *HTTPGateway) BankDetails(ctx context.Context, req BankDetailsRequest) (*BankTransferDetails, error) {
	var env bankDetailsEnvelope
	if err := g.post(ctx, endpointBankDetails, req, &env); err != nil {
		return nil, err
	}
	details := env.details()
	if details == nil {
		return nil, NewProtocolError("bank transfer details missing from gateway response")
	}
	return details, nil
}

// Verify implements GatewayClient.
func (g *HTTPGateway) Verify(ctx context.Context, req VerifyRequest) (*GatewayResponse, error) {
	var resp GatewayResponse
	if err := g.post(ctx, endpointVerify, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *HTTPGateway) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return NewNetworkError(msgNetworkFailure, fmt.Errorf("encode %s request: %w", endpoint, err))
	}

	url := g.baseURL + "/" + endpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return NewNetworkError(msgNetworkFailure, fmt.Errorf("build %s request: %w", endpoint, err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.publicKey)

	started := time.Now()
	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Warn("gateway request failed",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return NewNetworkError(msgNetworkFailure, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return NewNetworkError(msgNetworkFailure, err)
	}

	g.logger.Debug("gateway request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if httpResp.StatusCode >= http.StatusBadRequest {
		return NewNetworkError(
			errorMessageFromBody(raw),
			fmt.Errorf("%s returned HTTP %d", endpoint, httpResp.StatusCode),
		)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return NewProtocolError(fmt.Sprintf("gateway %s response was not valid JSON", endpoint))
	}
	return nil
}

// errorMessageFromBody extracts the human message from a structured error
// body if present, else falls back to the generic network message.
func errorMessageFromBody(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return msgNetworkFailure
}
