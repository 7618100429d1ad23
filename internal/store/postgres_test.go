package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextArray_NeverBindsNil(t *testing.T) {
	// Imported lines and ledger mutations leave Attachments nil; the bound
	// value must still encode as an empty array, not SQL NULL.
	got := textArray(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Equal(t, []string{"receipt.pdf"}, textArray([]string{"receipt.pdf"}))
}
