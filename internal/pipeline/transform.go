package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/pollution-reports/internal/domain"
)

// SubmissionTransformer implements Transformer by decoding the message body
// as a form submission and running it through report validation.
type SubmissionTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates a SubmissionTransformer.
func NewTransformer(logger *slog.Logger) *SubmissionTransformer {
	return &SubmissionTransformer{logger: logger}
}

func (t *SubmissionTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.ReportInput, error) {
	in, err := domain.ParseSubmission(raw)
	if err != nil {
		return domain.ReportInput{}, err
	}
	return domain.Validate(in)
}
