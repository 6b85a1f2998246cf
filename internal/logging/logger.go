// Package logging provides a logging abstraction layer that decouples the
// pipeline from a specific logging framework.
package logging

// Logger defines the interface for structured logging throughout the application.
type Logger interface {
	// Debug logs a debug-level message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info-level message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning-level message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error-level message with optional fields
	Error(msg string, fields ...Field)

	// WithError returns a new logger with an error field attached
	WithError(err error) Logger

	// WithField returns a new logger with a single field attached
	WithField(key string, value any) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Standardized field names used across the pipeline's log output.
const (
	FieldImportID   = "import_id"
	FieldTemplateID = "template_id"
	FieldUserID     = "user_id"
	FieldAccountID  = "account_id"
	FieldFile       = "file"
	FieldRows       = "rows"
	FieldValidRows  = "valid_rows"
	FieldInserted   = "inserted"
	FieldSkipped    = "skipped_duplicates"
	FieldDuration   = "duration_ms"
)
