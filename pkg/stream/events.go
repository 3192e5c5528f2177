// Package stream consumes the optimize-stream event stream: it types the
// wire events, routes decoded frames to a handler, and folds events into
// progressively-growing session state.
package stream

// EventType tags the stream event union.
type EventType string

const (
	EventStatus   EventType = "status"
	EventVariant  EventType = "variant"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Event is one typed stream event. Concrete types are StatusEvent,
// VariantEvent, ErrorEvent and CompleteEvent; consumers switch on Type().
type Event interface {
	Type() EventType
}

// StatusEvent announces a pipeline stage change.
type StatusEvent struct {
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

func (StatusEvent) Type() EventType { return EventStatus }

// VariantEvent delivers one generated shipping variant. Completed/Total/
// Progress come from the server, which is the progress authority.
type VariantEvent struct {
	Index        int      `json:"index"`
	TileIndex    int      `json:"tile_index"`
	VariantIndex int      `json:"variant_index"`
	VariantType  string   `json:"variant_type"`
	URL          string   `json:"url"`
	TileName     string   `json:"tile_name"`
	VariantLabel string   `json:"variant_label"`
	Completed    int      `json:"completed"`
	Total        int      `json:"total"`
	Progress     int      `json:"progress"`
	ShippingCost *float64 `json:"shipping_cost,omitempty"`
	ShippingErr  string   `json:"shipping_error,omitempty"`
}

func (VariantEvent) Type() EventType { return EventVariant }

// ErrorEvent reports a failure. Recoverable errors (one variant failed) do
// not end the stream; non-recoverable ones do.
type ErrorEvent struct {
	Message      string `json:"message"`
	Recoverable  bool   `json:"recoverable"`
	VariantIndex *int   `json:"variant_index,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
}

func (ErrorEvent) Type() EventType { return EventError }

// CompleteEvent is the terminal summary of a successful run.
type CompleteEvent struct {
	ID               string         `json:"id"`
	Total            int            `json:"total"`
	Successful       int            `json:"successful"`
	Failed           int            `json:"failed"`
	GridURL          string         `json:"grid_url"`
	OriginalURL      string         `json:"original_url"`
	VariantURLs      []string       `json:"variant_urls"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	Metrics          map[string]any `json:"metrics"`
}

func (CompleteEvent) Type() EventType { return EventComplete }
