package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/vgerber/opage/pkg/document"
	"github.com/vgerber/opage/pkg/openapi"
)

// NewLogger returns the text logger of the command line. Verbose enables
// debug output.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func loadDocument(ctx context.Context, input string) (*document.Document, error) {
	return openapi.LoadDocument(ctx, input)
}

// utility
func absPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	abs, _ := filepath.Abs(p)
	return abs
}
