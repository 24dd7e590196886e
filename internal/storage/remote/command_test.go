package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabendan2/file-explorer/internal/storage"
)

// TestHelperProcess is not a real test. It stands in for the external drive
// command when re-executed by helperCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		os.Exit(3)
	}
	mode, id := args[1], args[2]

	switch {
	case mode == "list" && id == "root":
		fmt.Print(`{"files":[{"name":"Docs","id":"d1","mimeType":"application/vnd.google-apps.folder"},{"name":"a.bin","id":"f1","size":"4"}]}`)
	case mode == "read" && id == "f1":
		os.Stdout.Write([]byte{0x00, 0xff, 0x10, 0x80})
	case mode == "garbage":
		fmt.Print("<html>")
	default:
		fmt.Fprintln(os.Stderr, "no such folder")
		os.Exit(2)
	}
	os.Exit(0)
}

func helperCommand(t *testing.T, mode string) []string {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	return []string{os.Args[0], "-test.run=TestHelperProcess", "--", mode}
}

func TestCommandBackend_List(t *testing.T) {
	b, err := NewCommand(CommandConfig{ListCommand: helperCommand(t, "list")})
	require.NoError(t, err)
	assert.Equal(t, "command", b.Type())

	entries, err := b.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].IsFolder())
	assert.Equal(t, "d1", entries[0].ID)
	assert.Equal(t, "a.bin", entries[1].Name)
}

func TestCommandBackend_FailureIsUpstream(t *testing.T) {
	b, err := NewCommand(CommandConfig{ListCommand: helperCommand(t, "list")})
	require.NoError(t, err)

	_, err = b.List(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrUpstream)

	garbage, err := NewCommand(CommandConfig{ListCommand: helperCommand(t, "garbage")})
	require.NoError(t, err)
	_, err = garbage.List(context.Background(), "")
	assert.ErrorIs(t, err, storage.ErrUpstream)

	missing, err := NewCommand(CommandConfig{ListCommand: []string{"/nonexistent/drive-cli"}})
	require.NoError(t, err)
	_, err = missing.List(context.Background(), "")
	assert.ErrorIs(t, err, storage.ErrUpstream)
}

func TestCommandBackend_Open(t *testing.T) {
	b, err := NewCommand(CommandConfig{
		ListCommand: helperCommand(t, "list"),
		ReadCommand: helperCommand(t, "read"),
	})
	require.NoError(t, err)

	c, err := b.Open(context.Background(), "f1")
	require.NoError(t, err)
	defer c.Close()

	data, err := io.ReadAll(c.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 0x10, 0x80}, data)
	assert.Equal(t, int64(4), c.Size)
}

func TestCommandBackend_OpenWithoutReadCommand(t *testing.T) {
	b, err := NewCommand(CommandConfig{ListCommand: []string{"true"}})
	require.NoError(t, err)

	_, err = b.Open(context.Background(), "f1")
	assert.ErrorIs(t, err, storage.ErrUnsupported)
}

func TestNewCommand_RequiresListCommand(t *testing.T) {
	_, err := NewCommand(CommandConfig{})
	assert.Error(t, err)
}

func TestCommandBackend_RejectsOptionLikeIDs(t *testing.T) {
	b, err := NewCommand(CommandConfig{
		ListCommand: helperCommand(t, "list"),
		ReadCommand: helperCommand(t, "read"),
	})
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"-la", "--version", "/--help"} {
		_, err := b.List(ctx, id)
		assert.ErrorIs(t, err, storage.ErrInvalidArg, id)

		_, err = b.Open(ctx, id)
		assert.ErrorIs(t, err, storage.ErrInvalidArg, id)
	}

	// A dash later in the id is an ordinary character.
	_, err = b.List(ctx, "a-b")
	assert.ErrorIs(t, err, storage.ErrUpstream)
}
