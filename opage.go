// Package opage generates typed API clients from OpenAPI 3.1 documents.
//
// The document is resolved into an intermediate representation first: a
// graph of named types and a list of operations whose request and response
// variants point into that graph. Emitters turn the representation into
// source files.
//
// Quick Start:
//
//	import "github.com/vgerber/opage"
//
//	err := opage.Generate(ctx, opage.Options{
//		Spec:   "./openapi.yaml",
//		OutDir: "./client",
//	})
//
// For more advanced usage, see the generator package.
package opage

import (
	"context"
	"log/slog"

	"github.com/vgerber/opage/pkg/config"
	"github.com/vgerber/opage/pkg/generator"
	"github.com/vgerber/opage/pkg/ir"
)

// Options contains options for client generation
type Options struct {
	// Spec is the OpenAPI document, a file path or an http(s) URL
	Spec string
	// OutDir receives the generated files
	OutDir string
	// ConfigPath is the path to the configuration file (optional)
	ConfigPath string
	// Config is used when ConfigPath is empty (optional)
	Config *config.Config
	// Type selects the emitter; empty means the configured target
	Type string
	// Logger receives progress and warnings; nil discards them
	Logger *slog.Logger
}

// Generate resolves the document and writes a client.
//
// Example:
//
//	err := opage.Generate(ctx, opage.Options{
//		Spec:       "./openapi.yaml",
//		OutDir:     "./client",
//		ConfigPath: "./opage.yaml",
//	})
func Generate(ctx context.Context, opts Options) error {
	return generator.NewService(opts.Logger).Generate(ctx, generator.GenerateOptions{
		Spec:       opts.Spec,
		OutDir:     opts.OutDir,
		ConfigPath: opts.ConfigPath,
		Config:     opts.Config,
		Type:       opts.Type,
	})
}

// Resolve parses an in-memory document and returns its frozen
// representation without emitting anything. A nil cfg means defaults.
func Resolve(ctx context.Context, data []byte, cfg *config.Config) (*ir.API, error) {
	return generator.ResolveData(ctx, "document", data, cfg, nil)
}

// ValidateSpec validates an OpenAPI document file or URL.
// This is useful for checking a document before attempting to generate a client.
//
// Example:
//
//	if err := opage.ValidateSpec(ctx, "./openapi.yaml"); err != nil {
//		log.Fatalf("Invalid OpenAPI spec: %v", err)
//	}
func ValidateSpec(ctx context.Context, specPath string) error {
	return generator.ValidateSpec(ctx, specPath)
}
