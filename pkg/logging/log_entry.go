package logging

// LogEntry represents a structured log record with fields particularly relevant to LLM operations.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Optimization-specific fields
	ModelID    string // The LLM model being used
	Generation int    // Population generation the record belongs to, if any

	// General structured data
	Fields map[string]interface{}
}
