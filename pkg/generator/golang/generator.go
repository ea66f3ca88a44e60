package golang

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/tools/imports"

	"github.com/vgerber/opage/pkg/config"
	"github.com/vgerber/opage/pkg/ir"
)

//go:embed templates/*
var templatesFS embed.FS

// GoEmitter writes a Go client package for a resolved API.
type GoEmitter struct {
	logger *slog.Logger
}

// NewGoEmitter creates a new Go emitter
func NewGoEmitter(logger *slog.Logger) *GoEmitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GoEmitter{logger: logger}
}

// Type returns the emitter type identifier
func (g *GoEmitter) Type() string {
	return "go"
}

// Emit renders api into outDir: the client runtime, one file per module,
// go.mod and README.md. Every file is rendered before the first one is
// written, and module files left over from earlier runs are removed.
func (g *GoEmitter) Emit(ctx context.Context, cfg *config.Config, outDir string, api *ir.API) error {
	if cfg == nil {
		cfg = config.Default()
	}

	name := api.Metadata.Name
	if name == "" {
		name = "client"
	}
	pkg := sanitizePackageName(name)
	title := api.Metadata.Title
	if title == "" {
		title = name
	}

	funcMap := template.FuncMap{
		"comment": formatGoComment,
	}
	// Merge sprig functions
	for k, v := range sprig.TxtFuncMap() {
		if _, taken := funcMap[k]; !taken {
			funcMap[k] = v
		}
	}

	r := &renderer{cfg: cfg, outDir: outDir, funcs: funcMap, logger: g.logger}
	common := map[string]any{
		"Package":    pkg,
		"Module":     modulePath(name),
		"Title":      title,
		"Version":    api.Metadata.Version,
		"Operations": api.Operations,
	}

	if err := r.render("client.go.gotmpl", "client.go", common); err != nil {
		return err
	}
	for _, mv := range newViewBuilder(api).modules(pkg) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.render("module.go.gotmpl", moduleFile(mv.Module), mv); err != nil {
			return err
		}
	}
	if err := r.render("go.mod.gotmpl", "go.mod", common); err != nil {
		return err
	}
	if err := r.render("README.md.gotmpl", "README.md", common); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.flush(); err != nil {
		return err
	}
	g.logger.Info("emitted go client", "dir", outDir, "package", pkg, "files", len(r.files))
	return nil
}

type renderedFile struct {
	name string
	data []byte
}

type renderer struct {
	cfg    *config.Config
	outDir string
	funcs  template.FuncMap
	logger *slog.Logger
	files  []renderedFile
}

// render renders a template into memory. Excluded files are skipped.
func (r *renderer) render(templateName, fileName string, data any) error {
	targetPath := filepath.Join(r.outDir, fileName)
	// Check if file should be excluded
	if r.cfg.ShouldExcludeFile(r.outDir, targetPath) {
		r.logger.Debug("skipping excluded file", "file", fileName)
		return nil
	}

	tmplContent, err := templatesFS.ReadFile("templates/" + templateName)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", templateName, err)
	}
	tmpl, err := template.New(templateName).Funcs(r.funcs).Parse(string(tmplContent))
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	out := buf.Bytes()
	if strings.HasSuffix(fileName, ".go") {
		if out, err = imports.Process(targetPath, out, nil); err != nil {
			return fmt.Errorf("generated %s does not parse: %w", fileName, err)
		}
	}
	r.files = append(r.files, renderedFile{name: fileName, data: out})
	return nil
}

// flush removes stale generated module files and writes the rendered ones.
func (r *renderer) flush() error {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return err
	}
	keep := make(map[string]bool, len(r.files))
	for _, f := range r.files {
		keep[f.name] = true
	}
	if err := r.removeStale(keep); err != nil {
		return err
	}
	for _, f := range r.files {
		targetPath := filepath.Join(r.outDir, f.name)
		if err := os.WriteFile(targetPath, f.data, 0o644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", targetPath, err)
		}
	}
	return nil
}

// removeStale deletes module files carrying the generated header that the
// current run no longer produces. Hand-written files are left alone.
func (r *renderer) removeStale(keep map[string]bool) error {
	entries, err := os.ReadDir(r.outDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || keep[name] || !isModuleFile(name) {
			continue
		}
		path := filepath.Join(r.outDir, name)
		if r.cfg.ShouldExcludeFile(r.outDir, path) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !bytes.HasPrefix(data, []byte(generatedHeader)) {
			continue
		}
		r.logger.Debug("removing stale module file", "file", name)
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
