package api

import (
	"fmt"
	"io"
	"time"
)

// OptimizeRequest describes one streaming optimization upload.
type OptimizeRequest struct {
	File        io.Reader
	Filename    string
	ContentType string

	// Optional shipping inputs forwarded as form fields.
	ActualWeightG *float64
	DimensionsCM  string
	PromptVariant string
}

// LinkStatus is the account-link snapshot from GET /meesho/status.
type LinkStatus struct {
	Linked     bool       `json:"linked"`
	SupplierID string     `json:"supplier_id,omitempty"`
	LinkedAt   *time.Time `json:"linked_at,omitempty"`
}

// SessionValidation is the response from GET /meesho/validate-session.
type SessionValidation struct {
	Valid     bool   `json:"valid"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ManualCredentials are the dashboard-derived credentials for POST /meesho/link.
type ManualCredentials struct {
	SupplierID string `json:"supplier_id"`
	Identifier string `json:"identifier"`
	ConnectSID string `json:"connect_sid"`
	BrowserID  string `json:"browser_id,omitempty"`
}

// LinkResult is the response from POST /meesho/link and /meesho/unlink.
type LinkResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	SupplierID string `json:"supplier_id,omitempty"`
}

// ShippingCostRequest asks for a cost estimate for one listing.
type ShippingCostRequest struct {
	Price   float64 `json:"price"`
	SscatID int     `json:"sscat_id"`
}

// ShippingCostResult is the fee breakdown from POST /meesho/shipping-cost.
// On failure Success is false and Error/ErrorCode are set.
type ShippingCostResult struct {
	Success         bool     `json:"success"`
	Price           *float64 `json:"price,omitempty"`
	ShippingCharges *float64 `json:"shipping_charges,omitempty"`
	TransferPrice   *float64 `json:"transfer_price,omitempty"`
	CommissionFees  *float64 `json:"commission_fees,omitempty"`
	GST             *float64 `json:"gst,omitempty"`
	TotalPrice      *float64 `json:"total_price,omitempty"`
	DuplicatePID    string   `json:"duplicate_pid,omitempty"`
	Error           string   `json:"error,omitempty"`
	ErrorCode       string   `json:"error_code,omitempty"`
}

// Category is one product sub-sub-category with its breadcrumb path.
type Category struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Breadcrumb string `json:"breadcrumb"`
}

// ImageResult is a processed-image record from GET /images/{id}/results
// and the history listing.
type ImageResult struct {
	ID               string         `json:"id"`
	OriginalFilename string         `json:"original_filename"`
	GridURL          string         `json:"blob_url,omitempty"`
	Status           string         `json:"status"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	ProcessingTimeMS int64          `json:"processing_time_ms,omitempty"`
	ShippingCostINR  *float64       `json:"shipping_cost_inr,omitempty"`
	StageMetrics     map[string]any `json:"stage_metrics,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
}

// LoginCredentials optionally autofill the remote browser login form.
// Both fields may be empty; the user then types into the hosted window.
type LoginCredentials struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// LoginSessionHandle is returned by POST /meesho/playwright/start.
type LoginSessionHandle struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// LoginSessionState is one poll result from GET /meesho/playwright/status/{id}.
type LoginSessionState struct {
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Linked     bool   `json:"linked,omitempty"`
	SupplierID string `json:"supplier_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// CancelResult is the response from POST /meesho/playwright/cancel/{id}.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the service's structured error envelope.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// APIError represents an error response from the service
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Retryable  bool
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}
