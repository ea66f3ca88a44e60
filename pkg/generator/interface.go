package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/vgerber/opage/pkg/config"
	"github.com/vgerber/opage/pkg/generator/golang"
	"github.com/vgerber/opage/pkg/generrors"
	"github.com/vgerber/opage/pkg/ir"
	"github.com/vgerber/opage/pkg/openapi"
)

// Emitter turns a frozen API into source files.
type Emitter interface {
	// Emit writes the client for api into outDir
	Emit(ctx context.Context, cfg *config.Config, outDir string, api *ir.API) error
	// Type returns the type identifier for this emitter (e.g., "go")
	Type() string
}

// Registry manages available emitters
type Registry struct {
	emitters map[string]Emitter
}

// NewRegistry creates a new emitter registry
func NewRegistry() *Registry {
	return &Registry{
		emitters: make(map[string]Emitter),
	}
}

// Register adds an emitter to the registry
func (r *Registry) Register(e Emitter) {
	r.emitters[e.Type()] = e
}

// Get retrieves an emitter by type
func (r *Registry) Get(emitterType string) (Emitter, bool) {
	e, exists := r.emitters[emitterType]
	return e, exists
}

// GetAvailableTypes returns all registered emitter types, sorted
func (r *Registry) GetAvailableTypes() []string {
	types := make([]string, 0, len(r.emitters))
	for t := range r.emitters {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// GenerateOptions contains options for client generation
type GenerateOptions struct {
	// Spec is the OpenAPI document, a file path or an http(s) URL
	Spec string
	// OutDir receives the generated files
	OutDir string
	// ConfigPath is an optional configuration file
	ConfigPath string
	// Config is used when ConfigPath is empty; nil means defaults
	Config *config.Config
	// Type selects the emitter. Empty means the configured target.
	Type string
}

// Service provides high-level client generation functionality
type Service struct {
	registry *Registry
	logger   *slog.Logger
}

// NewService creates a new generator service with the default emitters
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry := NewRegistry()
	registry.Register(golang.NewGoEmitter(logger))
	return &Service{registry: registry, logger: logger}
}

// NewServiceWithRegistry creates a new generator service with a custom registry
func NewServiceWithRegistry(registry *Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{registry: registry, logger: logger}
}

// GetRegistry returns the emitter registry
func (s *Service) GetRegistry() *Registry {
	return s.registry
}

// Generate loads the document, resolves it and hands the result to the
// selected emitter. Post commands run last, in the output directory.
func (s *Service) Generate(ctx context.Context, opts GenerateOptions) error {
	if opts.Spec == "" || opts.OutDir == "" {
		return &generrors.ConfigError{Field: "options", Message: "both a document and an output directory are required"}
	}
	cfg := opts.Config
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return err
		}
	}
	if cfg == nil {
		cfg = config.Default()
	}

	emitterType := opts.Type
	if emitterType == "" {
		emitterType = cfg.Target
	}
	emitter, exists := s.registry.Get(emitterType)
	if !exists {
		return fmt.Errorf("unsupported client type %q (available: %s)", emitterType, strings.Join(s.registry.GetAvailableTypes(), ", "))
	}

	doc, err := openapi.LoadDocument(ctx, opts.Spec)
	if err != nil {
		return err
	}
	api, err := Build(ctx, doc, cfg, s.logger)
	if err != nil {
		return err
	}

	if err := emitter.Emit(ctx, cfg, opts.OutDir, api); err != nil {
		return fmt.Errorf("emitting %s client: %w", emitterType, err)
	}

	// Execute post-generation commands if specified
	if err := s.executeCommand(ctx, cfg.PostCommand, opts.OutDir, "post-command"); err != nil {
		return fmt.Errorf("post-generation commands failed: %w", err)
	}
	return nil
}

// executeCommand executes a single command in Docker Compose array format
func (s *Service) executeCommand(ctx context.Context, command []string, workDir, commandLabel string) error {
	if len(command) == 0 {
		return nil // Skip empty commands
	}

	// Create command with first element as executable and rest as arguments
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = workDir      // Execute in the specified directory
	cmd.Stdout = os.Stdout // Forward stdout to see command output
	cmd.Stderr = os.Stderr // Forward stderr to see errors

	cmdDescription := strings.Join(command, " ")
	s.logger.Info("running command", "label", commandLabel, "command", cmdDescription, "dir", workDir)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s (%s) failed: %w", commandLabel, cmdDescription, err)
	}
	return nil
}
