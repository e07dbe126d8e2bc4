// Package extract turns free text into a partially filled student draft
// using an external extraction service.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"edureg/internal/student"
	"edureg/internal/validate"
)

// Message is what the user sees for any extraction failure.
const Message = "Could not extract data. Please check your text and try again."

var (
	// ErrFailed matches every extraction failure. The form is left as is and
	// the call may be retried.
	ErrFailed = errors.New(Message)
	// ErrEmptyInput is returned for blank text; no service call is made.
	ErrEmptyInput = errors.New("text to extract from is empty")
	// ErrDisabled is returned when no backend is configured.
	ErrDisabled = errors.New("extraction is not configured")
)

// Error wraps the underlying cause of a failed extraction.
type Error struct {
	Cause error
}

func (e *Error) Error() string { return Message }

func (e *Error) Unwrap() error { return e.Cause }

// Is makes every *Error match ErrFailed.
func (e *Error) Is(target error) bool { return target == ErrFailed }

func fail(err error) error {
	return &Error{Cause: err}
}

// Extractor is an extraction backend.
type Extractor interface {
	Extract(ctx context.Context, text string, today time.Time) (*student.Draft, error)
	Health(ctx context.Context) error
}

// Options configures New.
type Options struct {
	Backend string // none, http, mock, gemini
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New builds the configured backend.
func New(ctx context.Context, opts Options) (Extractor, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "none", "disabled":
		return Disabled{}, nil
	case "http":
		return NewClient(opts.URL, opts.Timeout, false), nil
	case "mock":
		return NewClient(opts.URL, opts.Timeout, true), nil
	case "gemini":
		return NewGemini(ctx, opts.APIKey, opts.Model)
	default:
		return nil, errors.Errorf("unknown extraction backend %q", opts.Backend)
	}
}

// checkInput rejects blank text before any call is made.
func checkInput(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	return text, nil
}

// finish normalizes a decoded draft and rejects one that does not validate.
// A rejected draft is a failure as a whole; nothing from it is merged.
func finish(d *student.Draft) (*student.Draft, error) {
	if d == nil {
		return nil, fail(errors.New("empty response"))
	}
	d.Normalize()
	if err := validate.Struct(d); err != nil {
		return nil, fail(errors.Wrap(err, "invalid extraction result"))
	}
	return d, nil
}

// Disabled is used when no backend is configured.
type Disabled struct{}

func (Disabled) Extract(context.Context, string, time.Time) (*student.Draft, error) {
	return nil, ErrDisabled
}

func (Disabled) Health(context.Context) error { return ErrDisabled }
