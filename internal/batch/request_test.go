package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest(n int) Request {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = "https://example.com/page"
	}
	return Request{
		URLs:   urls,
		Prompt: "Extract the page title",
	}
}

func TestRequestValidate(t *testing.T) {
	req := validRequest(3)
	require.NoError(t, req.Validate())

	// Defaults filled by validation.
	assert.Equal(t, DefaultConcurrency, req.Concurrency)
	assert.Equal(t, DefaultTimeout, req.TimeoutPerURL)
}

func TestRequestValidateNoURLs(t *testing.T) {
	req := validRequest(0)
	assert.ErrorIs(t, req.Validate(), ErrNoURLs)
}

func TestRequestValidateTooManyURLs(t *testing.T) {
	req := validRequest(MaxBatchURLs)
	require.NoError(t, req.Validate())

	req = validRequest(MaxBatchURLs + 1)
	assert.ErrorIs(t, req.Validate(), ErrTooManyURLs)
}

func TestRequestValidatePrompt(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		wantErr bool
	}{
		{name: "empty", prompt: "", wantErr: true},
		{name: "too short", prompt: "hi", wantErr: true},
		{name: "whitespace padding does not count", prompt: "  ab  ", wantErr: true},
		{name: "exactly minimum", prompt: "12345", wantErr: false},
		{name: "normal", prompt: "Extract name and price", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(1)
			req.Prompt = tt.prompt
			err := req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPromptTooShort)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequestValidateConcurrencyBounds(t *testing.T) {
	req := validRequest(1)
	req.Concurrency = MaxConcurrency + 1
	assert.Error(t, req.Validate())

	req = validRequest(1)
	req.Concurrency = -1
	assert.Error(t, req.Validate())

	req = validRequest(1)
	req.Concurrency = MaxConcurrency
	assert.NoError(t, req.Validate())
}

func TestNormalizeTrimsPrompt(t *testing.T) {
	req := validRequest(1)
	req.Prompt = "  Extract the title  "
	req.Normalize()
	assert.Equal(t, "Extract the title", req.Prompt)
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	req := validRequest(1)
	req.Concurrency = 2
	req.TimeoutPerURL = 10 * time.Second
	req.Normalize()
	assert.Equal(t, 2, req.Concurrency)
	assert.Equal(t, 10*time.Second, req.TimeoutPerURL)
}
