package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantTokenGenerator_ReturnsSameToken(t *testing.T) {
	gen := NewConstantTokenGenerator("test-run-001")

	assert.Equal(t, "test-run-001", gen.Generate())
	assert.Equal(t, "test-run-001", gen.Generate())
	assert.Equal(t, "test-run-001", gen.Generate())
}

func TestConstantTokenGenerator_EmptyTokenDefaults(t *testing.T) {
	gen := NewConstantTokenGenerator("")

	assert.Equal(t, "test-run-default", gen.Generate())
}
