package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	c := NewClient("test-token", serverURL)
	c.SetRetryIntervalsForTest()
	return c
}

// SetRetryIntervalsForTest shrinks backoff so retry tests run fast.
func (c *Client) SetRetryIntervalsForTest() {
	c.retryConfig.InitialInterval = time.Millisecond
	c.retryConfig.MaxInterval = 5 * time.Millisecond
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		expectedURL string
	}{
		{
			name:        "with_custom_base_url",
			baseURL:     "https://custom.api.com",
			expectedURL: "https://custom.api.com",
		},
		{
			name:        "with_empty_base_url_uses_default",
			baseURL:     "",
			expectedURL: defaultBaseURL,
		},
		{
			name:        "trailing_slash_stripped",
			baseURL:     "https://custom.api.com/",
			expectedURL: "https://custom.api.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient("key", tt.baseURL)

			if client == nil {
				t.Fatal("NewClient returned nil")
			}
			if client.baseURL != tt.expectedURL {
				t.Errorf("baseURL = %q, want %q", client.baseURL, tt.expectedURL)
			}
			if client.httpClient == nil {
				t.Error("httpClient is nil")
			}
		})
	}
}

func TestClient_LinkStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meesho/status" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"linked":      true,
			"supplier_id": "SUP123",
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	status, err := client.LinkStatus(context.Background())
	if err != nil {
		t.Fatalf("LinkStatus failed: %v", err)
	}
	if !status.Linked {
		t.Error("expected linked=true")
	}
	if status.SupplierID != "SUP123" {
		t.Errorf("supplier_id = %q", status.SupplierID)
	}
}

func TestClient_ValidateSession(t *testing.T) {
	tests := []struct {
		name     string
		response string
		valid    bool
		code     string
	}{
		{
			name:     "valid_session",
			response: `{"valid": true, "message": "Session is active"}`,
			valid:    true,
		},
		{
			name:     "expired_session",
			response: `{"valid": false, "error_code": "SESSION_EXPIRED", "message": "expired"}`,
			valid:    false,
			code:     "SESSION_EXPIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			validation, err := testClient(server.URL).ValidateSession(context.Background())
			if err != nil {
				t.Fatalf("ValidateSession failed: %v", err)
			}
			if validation.Valid != tt.valid {
				t.Errorf("valid = %v, want %v", validation.Valid, tt.valid)
			}
			if validation.ErrorCode != tt.code {
				t.Errorf("error_code = %q, want %q", validation.ErrorCode, tt.code)
			}
		})
	}
}

func TestClient_RetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"linked": false}`))
	}))
	defer server.Close()

	status, err := testClient(server.URL).LinkStatus(context.Background())
	if err != nil {
		t.Fatalf("expected retries to recover: %v", err)
	}
	if status.Linked {
		t.Error("expected linked=false")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestClient_DoesNotRetryPOST(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "boom"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Unlink(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (POST must not retry)", got)
	}
}

func TestClient_ParseError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantInMsg  string
		retryable  bool
	}{
		{
			name:       "structured_detail",
			statusCode: http.StatusForbidden,
			body:       `{"detail": "No credits remaining. Please purchase credits to continue."}`,
			wantInMsg:  "No credits remaining",
			retryable:  false,
		},
		{
			name:       "raw_body_fallback",
			statusCode: http.StatusBadGateway,
			body:       `upstream connect error`,
			wantInMsg:  "upstream connect error",
			retryable:  true,
		},
		{
			name:       "rate_limited",
			statusCode: http.StatusTooManyRequests,
			body:       `{"detail": "slow down"}`,
			wantInMsg:  "slow down",
			retryable:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.statusCode,
				Status:     http.StatusText(tt.statusCode),
				Body:       http.NoBody,
				Header:     http.Header{},
			}
			resp.Body = newStringBody(tt.body)

			err := NewClient("k", "http://x").parseError(resp)
			apiErr, ok := err.(*APIError)
			if !ok {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if !strings.Contains(apiErr.Message, tt.wantInMsg) {
				t.Errorf("message = %q, want substring %q", apiErr.Message, tt.wantInMsg)
			}
			if apiErr.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", apiErr.Retryable, tt.retryable)
			}
		})
	}
}

func newStringBody(s string) *readCloser {
	return &readCloser{Reader: strings.NewReader(s)}
}

type readCloser struct{ *strings.Reader }

func (r *readCloser) Close() error { return nil }

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("5"); got != 5*time.Second {
		t.Errorf("parseRetryAfter(5) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(empty) = %v", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Errorf("parseRetryAfter(garbage) = %v", got)
	}
}

func TestClient_LoginSessionLifecycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/meesho/playwright/start":
			var creds LoginCredentials
			json.NewDecoder(r.Body).Decode(&creds)
			if creds.Email != "seller@example.com" {
				t.Errorf("email = %q", creds.Email)
			}
			json.NewEncoder(w).Encode(LoginSessionHandle{SessionID: "sess-1", Status: "pending"})
		case r.Method == http.MethodGet && r.URL.Path == "/meesho/playwright/status/sess-1":
			json.NewEncoder(w).Encode(LoginSessionState{SessionID: "sess-1", Status: "browser_open"})
		case r.Method == http.MethodPost && r.URL.Path == "/meesho/playwright/cancel/sess-1":
			json.NewEncoder(w).Encode(CancelResult{Success: true, Message: "Session cancelled"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(server.URL)
	ctx := context.Background()

	handle, err := client.StartLoginSession(ctx, LoginCredentials{Email: "seller@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("StartLoginSession: %v", err)
	}
	if handle.SessionID != "sess-1" {
		t.Errorf("session_id = %q", handle.SessionID)
	}

	state, err := client.LoginSessionStatus(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoginSessionStatus: %v", err)
	}
	if state.Status != "browser_open" {
		t.Errorf("status = %q", state.Status)
	}

	cancel, err := client.CancelLoginSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("CancelLoginSession: %v", err)
	}
	if !cancel.Success {
		t.Error("expected cancel success")
	}
}

func TestClient_ShippingCost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ShippingCostRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SscatID != 1234 {
			t.Errorf("sscat_id = %d", req.SscatID)
		}
		w.Write([]byte(`{"success": true, "shipping_charges": 78.0, "total_price": 411.0}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).ShippingCost(context.Background(), ShippingCostRequest{Price: 299, SscatID: 1234})
	if err != nil {
		t.Fatalf("ShippingCost: %v", err)
	}
	if !result.Success || result.ShippingCharges == nil || *result.ShippingCharges != 78.0 {
		t.Errorf("unexpected result: %+v", result)
	}
}
