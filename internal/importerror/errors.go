// Package importerror defines the error taxonomy of the import pipeline.
//
// Load and transform errors are fatal for a single file, never for the
// import session. Row-level validation failures are data, not errors, and
// never appear here; they travel inside models.TransformationResult.
package importerror

import "fmt"

// LoadError represents a fatal failure while turning file bytes into a raw
// relation: undecodable bytes, a missing worksheet, or no data rows left
// after the configured skip.
type LoadError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load %s: %s: %v", e.FileName, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to load %s: %s", e.FileName, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// TransformError represents a fatal failure of the transform query: bad
// placeholder usage, SQL syntax errors, unresolvable columns, or an
// unguarded cast aborting the statement.
type TransformError struct {
	TemplateID string
	Query      string
	Err        error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform query failed for template %s: %v", e.TemplateID, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// PersistenceError represents a fatal failure of the persisting step,
// outside the expected unique-key conflict path. It aborts the import
// session and leaves the import record without a success timestamp.
type PersistenceError struct {
	ImportID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for import %s: %v", e.ImportID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// TemplateError represents an unusable transform template: missing
// placeholder, empty identity columns, or a failed sample-data self-test.
type TemplateError struct {
	TemplateID string
	Reason     string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s is not usable: %s", e.TemplateID, e.Reason)
}
