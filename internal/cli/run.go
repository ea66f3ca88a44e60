package cli

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vgerber/opage/pkg/generator"
)

// RunGenerateParams are the flags of the generate command.
type RunGenerateParams struct {
	Spec       string
	OutDir     string
	ConfigPath string
	Type       string
	Verbose    bool
}

// RunValidate resolves a document with default settings so that unsupported
// constructs surface before generation. The OpenAPI validator runs first; its
// findings only warn for 3.1 documents, which it does not fully model.
func RunValidate(ctx context.Context, input string, logger *slog.Logger) error {
	doc, err := loadDocument(ctx, input)
	if err != nil {
		return err
	}
	if err := generator.ValidateSpec(ctx, input); err != nil {
		if !is31(doc.Root().String("openapi")) {
			return err
		}
		logger.Warn("openapi validator reported problems", "error", err)
	}
	api, err := generator.Build(ctx, doc, nil, logger)
	if err != nil {
		return err
	}
	logger.Info("document is valid", "types", len(api.Types.Declared()), "operations", len(api.Operations))
	return nil
}

func is31(version string) bool {
	return strings.HasPrefix(strings.TrimSpace(version), "3.1")
}

// RunGenerate resolves the document and writes the client.
func RunGenerate(ctx context.Context, p RunGenerateParams, logger *slog.Logger) error {
	return generator.NewService(logger).Generate(ctx, generator.GenerateOptions{
		Spec:       p.Spec,
		OutDir:     absPath(p.OutDir),
		ConfigPath: p.ConfigPath,
		Type:       p.Type,
	})
}
