package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/metrics"
	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/storage"
)

const maxStderr = 512

// CommandConfig configures the command driver. Each command is an argv; the
// folder or file id is appended as the last argument. Ids starting with "-"
// are rejected so they cannot be read as options.
type CommandConfig struct {
	ListCommand []string
	ReadCommand []string
	Timeout     time.Duration
}

// CommandBackend lists and reads through external programs. The list
// command prints a JSON listing on stdout; the read command streams the
// file's bytes.
type CommandBackend struct {
	list    []string
	read    []string
	timeout time.Duration
}

// NewCommand creates a command driver.
func NewCommand(cfg CommandConfig) (*CommandBackend, error) {
	if len(cfg.ListCommand) == 0 || cfg.ListCommand[0] == "" {
		return nil, fmt.Errorf("remote list command is required")
	}
	return &CommandBackend{
		list:    cfg.ListCommand,
		read:    cfg.ReadCommand,
		timeout: cfg.Timeout,
	}, nil
}

// Type returns "command".
func (b *CommandBackend) Type() string { return "command" }

// List runs the list command for dir.
func (b *CommandBackend) List(ctx context.Context, dir string) ([]models.DirEntry, error) {
	start := time.Now()
	out, err := b.run(ctx, b.list, folderID(dir))
	if err != nil {
		metrics.RecordRemoteOperation(b.Type(), "list", time.Since(start), false)
		return nil, err
	}

	entries, err := DecodeItems(out)
	if err != nil {
		metrics.RecordRemoteOperation(b.Type(), "list", time.Since(start), false)
		return nil, fmt.Errorf("%w: %v", storage.ErrUpstream, err)
	}
	metrics.RecordRemoteOperation(b.Type(), "list", time.Since(start), true)
	return entries, nil
}

// Open runs the read command for id and buffers its output.
func (b *CommandBackend) Open(ctx context.Context, id string) (*storage.Content, error) {
	if len(b.read) == 0 || b.read[0] == "" {
		return nil, fmt.Errorf("remote read command not configured: %w", storage.ErrUnsupported)
	}
	id = strings.Trim(id, "/")
	if id == "" {
		return nil, fmt.Errorf("file id is required: %w", storage.ErrNotFound)
	}

	start := time.Now()
	out, err := b.run(ctx, b.read, id)
	metrics.RecordRemoteOperation(b.Type(), "read", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	return &storage.Content{
		Body: readSeekNopCloser{bytes.NewReader(out)},
		Name: path.Base(id),
		Size: int64(len(out)),
	}, nil
}

func (b *CommandBackend) run(ctx context.Context, argv []string, arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "-") {
		return nil, fmt.Errorf("id %q: %w", arg, storage.ErrInvalidArg)
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	args := append(append([]string{}, argv[1:]...), arg)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		logging.WithContext(ctx).Warn("remote command failed",
			zap.String("command", argv[0]),
			zap.String("arg", arg),
			zap.String("stderr", msg),
			zap.Error(err))
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", storage.ErrUpstream, argv[0], err)
	}
	return out, nil
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

var _ io.ReadSeeker = readSeekNopCloser{}
