package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabendan2/file-explorer/internal/models"
)

type stubBackend struct{ kind string }

func (s stubBackend) List(context.Context, string) ([]models.DirEntry, error) { return nil, nil }
func (s stubBackend) Open(context.Context, string) (*Content, error)          { return nil, ErrNotFound }
func (s stubBackend) Type() string                                            { return s.kind }

type stubMutator struct{ stubBackend }

func (stubMutator) Delete(context.Context, string) error         { return nil }
func (stubMutator) Rename(context.Context, string, string) error { return nil }

func TestRouterSelect(t *testing.T) {
	r := NewRouter(stubMutator{stubBackend{"local"}}, stubBackend{"command"})

	for _, mode := range []string{"", "local", " LOCAL "} {
		b, err := r.Select(mode)
		require.NoError(t, err, mode)
		assert.Equal(t, "local", b.Type())
	}

	b, err := r.Select("remote")
	require.NoError(t, err)
	assert.Equal(t, "command", b.Type())

	_, err = r.Select("ftp")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestRouterWithoutRemote(t *testing.T) {
	r := NewRouter(stubMutator{stubBackend{"local"}}, nil)
	assert.False(t, r.HasRemote())

	_, err := r.Select(ModeRemote)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRouterMutator(t *testing.T) {
	r := NewRouter(stubMutator{stubBackend{"local"}}, stubBackend{"http"})

	m, err := r.Mutator("")
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = r.Mutator(ModeRemote)
	assert.ErrorIs(t, err, ErrUnsupported)
}
