package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields propagated through the call chain via context.
const (
	FieldRequestID  = "request_id"
	FieldComponent  = "component"
	FieldClientID   = "client_id"
	FieldVideoID    = "video_id"
	FieldTemplateID = "template_id"
	FieldMatchID    = "match_id"
	FieldProvider   = "provider"
)

// Metric fields attached per entry for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldScore      = "score"
)
