package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vgerber/opage/pkg/generrors"
)

// Targets that have identifier rules.
const (
	TargetGo   = "go"
	TargetRust = "rust"
)

// Config represents the complete configuration for client generation
type Config struct {
	ProjectMetadata ProjectMetadata   `yaml:"project_metadata"`
	NameMapping     NameMappingConfig `yaml:"name_mapping"`
	Ignore          IgnoreConfig      `yaml:"ignore"`
	// Target selects the identifier rules (go or rust)
	Target string `yaml:"target" validate:"omitempty,oneof=go rust"`
	// InlinePrimitives promotes inline primitive schemas to shared builtins
	// instead of declaring an alias per location. Defaults to true.
	InlinePrimitives *bool `yaml:"inline_primitives"`
	// Parallelism bounds the number of components resolved at once.
	// Zero means GOMAXPROCS.
	Parallelism int `yaml:"parallelism" validate:"gte=0,lte=256"`
	// PostCommand is run in the output directory after emission.
	// Uses Docker Compose array format: ["go", "build", "./..."]
	PostCommand []string `yaml:"post_command" validate:"omitempty,dive,required"`
	// Exclude lists files (relative to the output directory) that must not be written
	Exclude []string `yaml:"exclude" validate:"omitempty,dive,required"`
}

// ProjectMetadata names the generated project
type ProjectMetadata struct {
	Name    string `yaml:"name" validate:"omitempty,max=214"`
	Version string `yaml:"version"`
}

// NameMappingConfig holds user supplied identifiers keyed by naming path.
// Paths look like "/Pet/Owner"; status codes are the numeric code.
type NameMappingConfig struct {
	StructMapping     map[string]string `yaml:"struct_mapping" validate:"omitempty,dive,keys,required,endkeys,required"`
	PropertyMapping   map[string]string `yaml:"property_mapping" validate:"omitempty,dive,keys,required,endkeys,required"`
	ModuleMapping     map[string]string `yaml:"module_mapping" validate:"omitempty,dive,keys,required,endkeys,required"`
	StatusCodeMapping map[string]string `yaml:"status_code_mapping" validate:"omitempty,dive,keys,required,endkeys,required"`
}

// IgnoreConfig lists path templates and components removed before resolution
type IgnoreConfig struct {
	Paths      []string `yaml:"paths" validate:"omitempty,dive,required,startswith=/"`
	Components []string `yaml:"components" validate:"omitempty,dive,required"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a YAML or JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &generrors.ConfigError{Field: "file", Value: path, Message: "cannot read configuration", Cause: err}
	}
	return Parse(data)
}

// Parse decodes and validates configuration data. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &generrors.ConfigError{Message: "invalid configuration document", Cause: err}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Target == "" {
		c.Target = TargetGo
	}
	if c.InlinePrimitives == nil {
		v := true
		c.InlinePrimitives = &v
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report yaml keys instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the structure of the configuration. Entries that name
// nothing in the document are not errors here; the resolvers log them.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &generrors.ConfigError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Value:   fmt.Sprint(fe.Value()),
				Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			}
		}
		return &generrors.ConfigError{Cause: err}
	}
	if _, err := c.StatusCodes(); err != nil {
		return err
	}
	return nil
}

// StatusCodes returns status_code_mapping keyed by numeric code.
func (c *Config) StatusCodes() (map[uint16]string, error) {
	out := make(map[uint16]string, len(c.NameMapping.StatusCodeMapping))
	for k, v := range c.NameMapping.StatusCodeMapping {
		code, err := strconv.ParseUint(strings.TrimSpace(k), 10, 16)
		if err != nil || code < 100 || code > 599 {
			return nil, &generrors.ConfigError{
				Field:   "name_mapping.status_code_mapping",
				Value:   k,
				Message: "status code must be a number between 100 and 599",
			}
		}
		out[uint16(code)] = v
	}
	return out, nil
}

// InlinePrimitivesEnabled reports the effective inline_primitives setting.
func (c *Config) InlinePrimitivesEnabled() bool {
	return c.InlinePrimitives == nil || *c.InlinePrimitives
}

// Workers returns the effective parallelism.
func (c *Config) Workers() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// ShouldExcludeFile checks if a file path should be excluded based on the Exclude list.
// targetPath should be an absolute path, and the comparison is done relative to outDir.
func (c *Config) ShouldExcludeFile(outDir, targetPath string) bool {
	if len(c.Exclude) == 0 {
		return false
	}

	relPath, err := filepath.Rel(outDir, targetPath)
	if err != nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	if relPath == "." {
		relPath = ""
	}

	for _, pattern := range c.Exclude {
		normalized := strings.TrimSuffix(filepath.ToSlash(pattern), "/")
		if relPath == normalized {
			return true
		}
		// a directory entry excludes everything below it
		if normalized != "" && strings.HasPrefix(relPath, normalized+"/") {
			return true
		}
	}
	return false
}
