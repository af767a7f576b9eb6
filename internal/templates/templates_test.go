package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{"articles", "contacts", "jobs", "products"}, names)
}

func TestGet(t *testing.T) {
	prompt, ok := Get("products")
	assert.True(t, ok)
	assert.Contains(t, prompt, "price")

	_, ok = Get("nope")
	assert.False(t, ok)
}
