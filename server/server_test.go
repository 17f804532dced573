package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkout "github.com/graypay/checkout-go"
)

type stubGateway struct {
	initialize func(ctx context.Context, req checkout.InitializeRequest) (*checkout.GatewayResponse, error)
	pay        func(ctx context.Context, req checkout.PayRequest) (*checkout.GatewayResponse, error)
}

func (s *stubGateway) Initialize(ctx context.Context, req checkout.InitializeRequest) (*checkout.GatewayResponse, error) {
	return s.initialize(ctx, req)
}

func (s *stubGateway) Pay(ctx context.Context, req checkout.PayRequest) (*checkout.GatewayResponse, error) {
	return s.pay(ctx, req)
}

func (s *stubGateway) VerifyOTP(context.Context, checkout.VerifyOTPRequest) (*checkout.GatewayResponse, error) {
	return nil, checkout.NewStateError("not implemented")
}

func (s *stubGateway) BankDetails(context.Context, checkout.BankDetailsRequest) (*checkout.BankTransferDetails, error) {
	return nil, checkout.NewStateError("not implemented")
}

func (s *stubGateway) Verify(context.Context, checkout.VerifyRequest) (*checkout.GatewayResponse, error) {
	return nil, checkout.NewStateError("not implemented")
}

func gatewayResponse(t *testing.T, body string) *checkout.GatewayResponse {
	t.Helper()
	var resp checkout.GatewayResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return &resp
}

func validCustomer() checkout.Customer {
	return checkout.Customer{
		FirstName: "Ada",
		LastName:  "Obi",
		Email:     "ada@example.com",
		Phone:     "+2348012345678",
	}
}

func validInitializeRequest() checkout.InitializeRequest {
	return checkout.InitializeRequest{
		PublicKey:   "pk_test_123",
		Amount:      250000,
		Currency:    "NGN",
		Reference:   "GR-1700000000000-ABC123",
		CallbackURL: "https://merchant.example.com/callback",
		Customer:    validCustomer(),
	}
}

func validPayRequest() checkout.PayRequest {
	return checkout.PayRequest{
		TransactionID: "tx_1",
		Reference:     "GR-1700000000000-ABC123",
		Method:        checkout.MethodCard,
		Amount:        250000,
		Currency:      "NGN",
		Customer:      validCustomer(),
		Card: &checkout.CardPayload{
			Number: "4111111111111111",
			Expiry: "12/39",
			CVV:    "123",
			PIN:    "1234",
		},
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestInitializePayment(t *testing.T) {
	t.Parallel()

	t.Run("forwards valid payload and echoes transaction id", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{
			initialize: func(_ context.Context, req checkout.InitializeRequest) (*checkout.GatewayResponse, error) {
				assert.Equal(t, int64(250000), req.Amount)
				return gatewayResponse(t, `{"status":"success","transaction_id":"tx_42"}`), nil
			},
		}
		api := New(gw, WithEnvironment("test"))

		rec := postJSON(t, api.Routes(), "/payments/initialize", validInitializeRequest(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp InitializePaymentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Status)
		assert.Equal(t, "tx_42", resp.TransactionID)
		assert.Equal(t, "GR-1700000000000-ABC123", resp.Reference)
	})

	t.Run("generates a transaction id when the gateway omits one", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{
			initialize: func(context.Context, checkout.InitializeRequest) (*checkout.GatewayResponse, error) {
				return gatewayResponse(t, `{"status":"success"}`), nil
			},
		}
		api := New(gw, WithEnvironment("test"))

		rec := postJSON(t, api.Routes(), "/payments/initialize", validInitializeRequest(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp InitializePaymentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.TransactionID)
	})

	t.Run("rejects invalid payloads without touching the gateway", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{
			initialize: func(context.Context, checkout.InitializeRequest) (*checkout.GatewayResponse, error) {
				t.Fatal("gateway must not be called")
				return nil, nil
			},
		}
		api := New(gw, WithEnvironment("test"))

		req := validInitializeRequest()
		req.Amount = 50

		rec := postJSON(t, api.Routes(), "/payments/initialize", req, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp checkout.Error
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, checkout.ErrorKindValidation, resp.Kind)
		assert.Equal(t, "amount", resp.Field)
	})

	t.Run("maps gateway failures to bad gateway", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{
			initialize: func(context.Context, checkout.InitializeRequest) (*checkout.GatewayResponse, error) {
				return nil, checkout.NewNetworkError("gateway unavailable", nil)
			},
		}
		api := New(gw, WithEnvironment("test"))

		rec := postJSON(t, api.Routes(), "/payments/initialize", validInitializeRequest(), nil)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestPayWithCard(t *testing.T) {
	t.Parallel()

	t.Run("forwards a valid card payment with masked metadata", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{
			pay: func(_ context.Context, req checkout.PayRequest) (*checkout.GatewayResponse, error) {
				assert.Equal(t, "tx_1", req.TransactionID)
				return gatewayResponse(t, `{"status":"successful","message":"approved"}`), nil
			},
		}
		api := New(gw, WithEnvironment("test"))

		rec := postJSON(t, api.Routes(), "/payments/pay", validPayRequest(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp PayCardResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "successful", resp.Status)
		require.NotNil(t, resp.Card)
		assert.Equal(t, "visa", resp.Card.Brand)
		assert.Equal(t, "1111", resp.Card.Last4)
		assert.NotContains(t, rec.Body.String(), "4111111111111111")
	})

	for name, tc := range map[string]struct {
		mutate    func(*checkout.PayRequest)
		wantField string
	}{
		"luhn failure": {
			mutate:    func(req *checkout.PayRequest) { req.Card.Number = "4111111111111112" },
			wantField: "card.number",
		},
		"wrong length for brand": {
			mutate:    func(req *checkout.PayRequest) { req.Card.Number = "411111111111" },
			wantField: "card.number",
		},
		"expired card": {
			mutate:    func(req *checkout.PayRequest) { req.Card.Expiry = "01/20" },
			wantField: "card.expiry",
		},
		"malformed expiry": {
			mutate:    func(req *checkout.PayRequest) { req.Card.Expiry = "1239" },
			wantField: "card.expiry",
		},
	} {
		tc := tc
		t.Run("rejects "+name, func(t *testing.T) {
			t.Parallel()
			gw := &stubGateway{
				pay: func(context.Context, checkout.PayRequest) (*checkout.GatewayResponse, error) {
					t.Fatal("gateway must not be called")
					return nil, nil
				},
			}
			api := New(gw, WithEnvironment("test"))

			req := validPayRequest()
			tc.mutate(&req)

			rec := postJSON(t, api.Routes(), "/payments/pay", req, nil)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp checkout.Error
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, checkout.ErrorKindValidation, resp.Kind)
			assert.Equal(t, tc.wantField, resp.Field)
		})
	}

	t.Run("requires HTTPS outside development environments", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{
			pay: func(context.Context, checkout.PayRequest) (*checkout.GatewayResponse, error) {
				t.Fatal("gateway must not be called")
				return nil, nil
			},
		}
		api := New(gw, WithEnvironment("production"))

		rec := postJSON(t, api.Routes(), "/payments/pay", validPayRequest(), nil)

		assert.Equal(t, http.StatusUpgradeRequired, rec.Code)
		assert.Equal(t, "TLS/1.2", rec.Header().Get("Upgrade"))
	})

	t.Run("accepts forwarded HTTPS in production", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{
			pay: func(context.Context, checkout.PayRequest) (*checkout.GatewayResponse, error) {
				return gatewayResponse(t, `{"status":"successful"}`), nil
			},
		}
		api := New(gw, WithEnvironment("production"))

		rec := postJSON(t, api.Routes(), "/payments/pay", validPayRequest(), func(req *http.Request) {
			req.Header.Set("X-Forwarded-Proto", "https")
		})

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireAPIKey(t *testing.T) {
	t.Parallel()

	newAPI := func(t *testing.T) *API {
		gw := &stubGateway{
			initialize: func(context.Context, checkout.InitializeRequest) (*checkout.GatewayResponse, error) {
				return gatewayResponse(t, `{"status":"success","transaction_id":"tx_1"}`), nil
			},
		}
		return New(gw,
			WithEnvironment("test"),
			WithAuthenticator(StaticKeyAuthenticator("sk_test_good")),
		)
	}

	for name, tc := range map[string]struct {
		authorization string
		wantStatus    int
	}{
		"missing header":   {authorization: "", wantStatus: http.StatusUnauthorized},
		"wrong scheme":     {authorization: "Basic sk_test_good", wantStatus: http.StatusUnauthorized},
		"unknown key":      {authorization: "Bearer sk_test_bad", wantStatus: http.StatusUnauthorized},
		"valid key":        {authorization: "Bearer sk_test_good", wantStatus: http.StatusOK},
		"case-insensitive": {authorization: "bearer sk_test_good", wantStatus: http.StatusOK},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rec := postJSON(t, newAPI(t).Routes(), "/payments/initialize", validInitializeRequest(), func(req *http.Request) {
				if tc.authorization != "" {
					req.Header.Set("Authorization", tc.authorization)
				}
			})
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestRequestMeta(t *testing.T) {
	t.Parallel()

	newAPI := func(t *testing.T) *API {
		gw := &stubGateway{
			initialize: func(context.Context, checkout.InitializeRequest) (*checkout.GatewayResponse, error) {
				return gatewayResponse(t, `{"status":"success","transaction_id":"tx_1"}`), nil
			},
		}
		return New(gw, WithEnvironment("test"))
	}

	t.Run("echoes a caller-supplied request id", func(t *testing.T) {
		t.Parallel()
		rec := postJSON(t, newAPI(t).Routes(), "/payments/initialize", validInitializeRequest(), func(req *http.Request) {
			req.Header.Set("Request-Id", "req-123")
		})
		assert.Equal(t, "req-123", rec.Header().Get("Request-Id"))
	})

	t.Run("generates a request id when absent", func(t *testing.T) {
		t.Parallel()
		rec := postJSON(t, newAPI(t).Routes(), "/payments/initialize", validInitializeRequest(), nil)
		assert.NotEmpty(t, rec.Header().Get("Request-Id"))
	})
}
