package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vgerber/opage/pkg/generrors"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
project_metadata:
  name: petstore
  version: 0.1.0
name_mapping:
  struct_mapping:
    /Component/SubComponent/TestObject: TestObjectData
  status_code_mapping:
    404: Missing
ignore:
  paths: [/internal/health]
  components: [LegacyPet]
post_command: [go, build, ./...]
`))
	require.NoError(t, err)
	assert.Equal(t, "petstore", cfg.ProjectMetadata.Name)
	assert.Equal(t, "TestObjectData", cfg.NameMapping.StructMapping["/Component/SubComponent/TestObject"])
	assert.Equal(t, []string{"/internal/health"}, cfg.Ignore.Paths)
	assert.Equal(t, TargetGo, cfg.Target)
	assert.True(t, cfg.InlinePrimitivesEnabled())

	codes, err := cfg.StatusCodes()
	require.NoError(t, err)
	assert.Equal(t, map[uint16]string{404: "Missing"}, codes)
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"project_metadata": {"name": "x"}, "name_mapping": {"status_code_mapping": {"200": "Fine"}}, "inline_primitives": false, "target": "rust"}`))
	require.NoError(t, err)
	assert.False(t, cfg.InlinePrimitivesEnabled())
	assert.Equal(t, TargetRust, cfg.Target)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown key", "project: x"},
		{"bad target", "target: cobol"},
		{"negative parallelism", "parallelism: -1"},
		{"empty mapping value", "name_mapping: {struct_mapping: {/Pet: ''}}"},
		{"status code not numeric", "name_mapping: {status_code_mapping: {OK: Fine}}"},
		{"status code out of range", "name_mapping: {status_code_mapping: {700: Odd}}"},
		{"ignored path without slash", "ignore: {paths: [pets]}"},
		{"wrong shape", "ignore: [a, b]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, generrors.ErrConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opage.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_metadata: {name: demo}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.ProjectMetadata.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, generrors.ErrConfig)
}

func TestShouldExcludeFile(t *testing.T) {
	cfg := &Config{Exclude: []string{"go.mod", "internal/"}}
	out := "/tmp/out"
	tests := []struct {
		path     string
		expected bool
	}{
		{"/tmp/out/go.mod", true},
		{"/tmp/out/internal/x.go", true},
		{"/tmp/out/models.go", false},
		{"/elsewhere/go.mod", false},
	}
	for _, tt := range tests {
		if got := cfg.ShouldExcludeFile(out, tt.path); got != tt.expected {
			t.Errorf("ShouldExcludeFile(%q) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}
