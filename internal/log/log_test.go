package log_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/raf-andrew/sniffer/internal/log"

	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.New(&buf, true)

	ctx := log.ContextAttrs(t.Context(), slog.String("job_id", "abc"))
	ctx = log.ContextAttrs(ctx, slog.String("path", "a.py"))
	logger.InfoContext(ctx, "sniffing")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "sniffing", rec["msg"])
	require.Equal(t, "abc", rec["job_id"])
	require.Equal(t, "a.py", rec["path"])
}

func TestVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.New(&buf, false)
	logger.Debug("hidden")
	require.Zero(t, buf.Len())

	logger = log.New(&buf, true)
	logger.Debug("visible")
	require.NotZero(t, buf.Len())
}

func TestOutput(t *testing.T) {
	t.Parallel()
	require.Equal(t, os.Stdout, log.Output("stdout"))
	require.Equal(t, os.Stderr, log.Output("stderr"))
	require.Equal(t, io.Discard, log.Output("discard"))
	require.Equal(t, os.Stderr, log.Output("bogus"))
}
