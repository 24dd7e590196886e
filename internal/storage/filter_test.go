package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabendan2/file-explorer/internal/models"
)

func TestFilterByPattern(t *testing.T) {
	entries := []models.DirEntry{
		{Name: "a.txt", Type: models.TypeFile},
		{Name: "b.png", Type: models.TypeFile},
		{Name: "docs", Type: models.TypeFolder},
	}

	got, err := FilterByPattern(entries, "*.{txt,png}")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.txt", got[0].Name)
	assert.Equal(t, "b.png", got[1].Name)

	all, err := FilterByPattern(entries, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = FilterByPattern(entries, "[")
	assert.ErrorIs(t, err, ErrBadPattern)
}
