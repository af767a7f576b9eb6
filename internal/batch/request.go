// Package batch implements the batch orchestration core: parsing user URL
// lists, scheduling per-URL extraction calls with a bounded concurrency
// level, aggregating progress, and producing a final summary.
package batch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validation limits, matching the extraction API's request schema.
const (
	MaxBatchURLs       = 100
	MinPromptLength    = 5
	MaxConcurrency     = 20
	DefaultConcurrency = 5
	DefaultTimeout     = 30 * time.Second
)

// Request validation errors. These are rejected synchronously, before any
// batch item is created.
var (
	ErrNoURLs         = errors.New("at least one URL required")
	ErrTooManyURLs    = fmt.Errorf("maximum %d URLs per batch", MaxBatchURLs)
	ErrPromptTooShort = fmt.Errorf("prompt must be at least %d characters", MinPromptLength)
)

// Request describes one batch run: the ordered URL list, the shared
// extraction prompt, and batch-wide options applied to every URL.
type Request struct {
	URLs          []string      `validate:"required,min=1,max=100"`
	Prompt        string        `validate:"prompt"`
	Model         string
	SchemaName    string
	Concurrency   int           `validate:"gte=1,lte=20"`
	TimeoutPerURL time.Duration `validate:"gte=0"`

	UseCache        bool
	UseRateLimiting bool
	UseStealth      bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("prompt", func(fl validator.FieldLevel) bool {
		return len(strings.TrimSpace(fl.Field().String())) >= MinPromptLength
	})
	return v
}

// Normalize fills zero-valued tunables with their defaults.
func (r *Request) Normalize() {
	if r.Concurrency == 0 {
		r.Concurrency = DefaultConcurrency
	}
	if r.TimeoutPerURL == 0 {
		r.TimeoutPerURL = DefaultTimeout
	}
	r.Prompt = strings.TrimSpace(r.Prompt)
}

// Validate normalizes the request and checks its bounds. A non-nil error
// means the batch must not start and no items may be created.
func (r *Request) Validate() error {
	r.Normalize()

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate batch request: %w", err)
	}

	for _, fe := range verrs {
		switch fe.StructField() {
		case "URLs":
			if fe.Tag() == "max" {
				return ErrTooManyURLs
			}
			return ErrNoURLs
		case "Prompt":
			return ErrPromptTooShort
		case "Concurrency":
			return fmt.Errorf("concurrency must be between 1 and %d, got %d", MaxConcurrency, r.Concurrency)
		}
	}
	return fmt.Errorf("invalid batch request: %w", err)
}
