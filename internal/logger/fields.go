package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields. These ride on the context logger and follow a request
// through the pipeline.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldMatchID identifies one pipeline run; it also names the workspace directory.
	FieldMatchID = "match_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the shopping source identifier
	FieldSource = "source"
)

// Metric fields, attached per entry for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"

	// FieldScored is the number of candidates that received a similarity score
	FieldScored = "scored"

	// FieldSimilarity is a single candidate's similarity score
	FieldSimilarity = "similarity"
)
