package generator

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/vgerber/opage/pkg/config"
	"github.com/vgerber/opage/pkg/document"
	"github.com/vgerber/opage/pkg/ir"
	"github.com/vgerber/opage/pkg/openapi"
)

// GenerateGoClient is a convenience function for Go client generation with
// default configuration
func GenerateGoClient(ctx context.Context, spec, outDir string) error {
	// Ensure absolute path for outDir
	absOutDir, err := filepath.Abs(outDir)
	if err != nil {
		return err
	}
	return NewService(nil).Generate(ctx, GenerateOptions{
		Spec:   spec,
		OutDir: absOutDir,
		Type:   "go",
	})
}

// GenerateFromConfig is a convenience function for generating from a config file
func GenerateFromConfig(ctx context.Context, configPath, spec, outDir string, logger *slog.Logger) error {
	return NewService(logger).Generate(ctx, GenerateOptions{
		Spec:       spec,
		OutDir:     outDir,
		ConfigPath: configPath,
	})
}

// ResolveData resolves an in-memory document without emitting anything.
func ResolveData(ctx context.Context, source string, data []byte, cfg *config.Config, logger *slog.Logger) (*ir.API, error) {
	doc, err := document.Parse(source, data)
	if err != nil {
		return nil, err
	}
	return Build(ctx, doc, cfg, logger)
}

// ValidateSpec validates an OpenAPI document
func ValidateSpec(ctx context.Context, specPath string) error {
	return openapi.ValidateDocument(ctx, specPath)
}
