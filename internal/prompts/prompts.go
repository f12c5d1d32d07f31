// Package prompts supplies prompt templates to the evaluation pipeline.
//
// Templates are loaded through the Source capability, selected once at
// startup: the embedded source in normal operation, the disk source when
// iterating on prompt wording without rebuilding.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*.txt
var embeddedTemplates embed.FS

// Source loads a named prompt template.
type Source interface {
	Load(name string) (string, error)
}

// EmbeddedSource serves templates compiled into the binary.
type EmbeddedSource struct{}

// NewEmbeddedSource returns the default template source.
func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{}
}

// Load implements Source.
func (s *EmbeddedSource) Load(name string) (string, error) {
	data, err := embeddedTemplates.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("embedded template %q: %w", name, err)
	}
	return string(data), nil
}

// DiskSource serves templates from a directory, for prompt iteration.
type DiskSource struct {
	dir string
}

// NewDiskSource creates a source reading templates from dir.
func NewDiskSource(dir string) *DiskSource {
	return &DiskSource{dir: dir}
}

// Load implements Source.
func (s *DiskSource) Load(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		return "", fmt.Errorf("template %q from %s: %w", name, s.dir, err)
	}
	return string(data), nil
}

// Render substitutes {{KEY}} placeholders in a template.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
