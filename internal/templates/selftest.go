package templates

import (
	"context"
	"fmt"
	"strings"

	"ledgerpipe/internal/importerror"
	"ledgerpipe/internal/models"
	"ledgerpipe/internal/relation"
	"ledgerpipe/internal/validation"
)

// Executor is the transform-execution dependency of the self-test.
// Satisfied by transform.Executor.
type Executor interface {
	Execute(ctx context.Context, rel *relation.RawRelation, tmpl models.TransformTemplate) ([]models.Row, error)
}

// SelfTest runs the template's own sample data through the regular
// load -> transform -> validate path and requires every sample row to
// validate. A template that cannot fully process its own fixture is not
// usable for real imports.
//
// Sample data is stored as CSV text, so only CSV templates carry a
// fixture; Excel templates are exercised against real workbooks instead.
func SelfTest(ctx context.Context, tmpl models.TransformTemplate, executor Executor) (*models.TransformationResult, error) {
	if err := Check(tmpl); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tmpl.SampleData) == "" {
		return nil, &importerror.TemplateError{TemplateID: tmpl.ID, Reason: "no sample data to test against"}
	}
	if tmpl.Parsing.Format != models.FormatCSV {
		return nil, &importerror.TemplateError{TemplateID: tmpl.ID, Reason: "self-test requires a csv template"}
	}

	rel, err := relation.Load(strings.NewReader(tmpl.SampleData), tmpl.ID+" sample", tmpl.Parsing)
	if err != nil {
		return nil, &importerror.TemplateError{TemplateID: tmpl.ID, Reason: fmt.Sprintf("sample data does not load: %v", err)}
	}

	rows, err := executor.Execute(ctx, rel, tmpl)
	if err != nil {
		return nil, &importerror.TemplateError{TemplateID: tmpl.ID, Reason: fmt.Sprintf("transform fails on sample data: %v", err)}
	}

	result := validation.Validate(rows, tmpl.Parsing, validation.Options{})
	if result.TotalRows == 0 {
		return result, &importerror.TemplateError{TemplateID: tmpl.ID, Reason: "transform produced no rows from sample data"}
	}
	if result.ValidRows != result.TotalRows {
		return result, &importerror.TemplateError{
			TemplateID: tmpl.ID,
			Reason:     fmt.Sprintf("%d of %d sample rows failed validation", result.TotalRows-result.ValidRows, result.TotalRows),
		}
	}
	return result, nil
}
