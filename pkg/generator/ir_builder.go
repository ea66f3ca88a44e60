package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vgerber/opage/pkg/config"
	"github.com/vgerber/opage/pkg/document"
	"github.com/vgerber/opage/pkg/generrors"
	"github.com/vgerber/opage/pkg/ir"
	"github.com/vgerber/opage/pkg/naming"
)

// Build resolves doc into a frozen API. The stages run in a fixed order:
// ignore filter, component schemas, operations, allOf flattening, naming,
// freeze. Any failure aborts the run and nothing is returned.
func Build(ctx context.Context, doc *document.Document, cfg *config.Config, logger *slog.Logger) (*ir.API, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lang, err := naming.ForTarget(cfg.Target)
	if err != nil {
		return nil, &generrors.ConfigError{Field: "target", Value: cfg.Target, Cause: err}
	}
	statuses, err := cfg.StatusCodes()
	if err != nil {
		return nil, err
	}

	working, err := ApplyIgnore(doc, cfg.Ignore, logger)
	if err != nil {
		return nil, err
	}

	graph := ir.NewGraph()
	schemas := NewSchemaResolver(working, graph, SchemaResolverOptions{
		InlinePrimitives: cfg.InlinePrimitivesEnabled(),
		Logger:           logger,
	})
	operations := NewOperationResolver(working, schemas, statuses, logger)

	if err := schemas.ResolveComponents(ctx, cfg.Workers()); err != nil {
		return nil, err
	}
	ops, err := operations.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := schemas.Flatten(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	api := &ir.API{
		Metadata:   metadataOf(working, cfg),
		Types:      graph,
		Operations: ops,
	}
	if err := NewNameResolver(lang, cfg.NameMapping, statuses, logger).Resolve(api); err != nil {
		return nil, err
	}
	if err := graph.Freeze(); err != nil {
		return nil, fmt.Errorf("inconsistent type graph: %w", err)
	}
	if err := api.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent operations: %w", err)
	}

	logger.Info("resolved document",
		"source", doc.Source(),
		"types", graph.Len(),
		"declared", len(graph.Declared()),
		"operations", len(ops))
	return api, nil
}

func metadataOf(doc *document.Document, cfg *config.Config) ir.Metadata {
	info, _ := doc.Lookup("#/info")
	md := ir.Metadata{
		Name:    cfg.ProjectMetadata.Name,
		Version: cfg.ProjectMetadata.Version,
		Title:   info.String("title"),
	}
	if md.Name == "" {
		md.Name = md.Title
	}
	if md.Version == "" {
		md.Version = info.String("version")
	}
	return md
}
