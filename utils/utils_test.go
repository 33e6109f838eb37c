package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageMeta(t *testing.T) {
	meta := NewPageMeta(45, 2, 20)
	assert.Equal(t, 45, meta.TotalItems)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)

	last := NewPageMeta(45, 3, 20)
	assert.False(t, last.HasNext)
}

func TestNewPageMetaDefaults(t *testing.T) {
	meta := NewPageMeta(0, 0, 0)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 20, meta.PageSize)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNext)
}
