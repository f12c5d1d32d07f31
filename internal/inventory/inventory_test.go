package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCollectCountsSourceFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, root, "lib/util.py", "def f():\n    pass\n")
	writeFile(t, root, "README.md", "not counted\n")
	writeFile(t, root, "node_modules/dep/index.js", "skipped\n")

	inv, err := Collect(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 2, inv.FileCount)
	assert.Equal(t, 1, inv.Languages["go"])
	assert.Equal(t, 1, inv.Languages["py"])
	assert.Equal(t, 7, inv.TotalLines)
}

func TestCollectParsesGoMod(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", `module example.com/demo

go 1.23

require (
	github.com/google/uuid v1.6.0
	github.com/stretchr/testify v1.9.0
	gopkg.in/yaml.v3 v3.0.1 // indirect
)
`)
	writeFile(t, root, "main.go", "package main\n")

	inv, err := Collect(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, "example.com/demo", inv.ModulePath)
	assert.Equal(t, "1.23", inv.GoVersion)
	assert.Equal(t, 2, inv.DirectDeps)
}

func TestCollectMalformedGoMod(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "this is not a go.mod\n")
	writeFile(t, root, "main.go", "package main\n")

	inv, err := Collect(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, inv.ModulePath)
	assert.Equal(t, 1, inv.FileCount)
}

func TestSummary(t *testing.T) {
	inv := &Inventory{
		TotalLines: 120,
		FileCount:  4,
		Languages:  map[string]int{"ts": 1, "go": 3},
		ModulePath: "example.com/demo",
		GoVersion:  "1.23",
		DirectDeps: 5,
	}

	summary := inv.Summary()
	assert.Contains(t, summary, "4 source files, 120 lines of code")
	// language keys are sorted for prompt stability
	assert.Contains(t, summary, "languages: go (3), ts (1)")
	assert.Contains(t, summary, "Go module example.com/demo (go 1.23, 5 direct dependencies)")
}

func TestSummaryEmpty(t *testing.T) {
	inv := &Inventory{Languages: map[string]int{}}
	summary := inv.Summary()
	assert.Contains(t, summary, "0 source files, 0 lines of code")
	assert.NotContains(t, summary, "languages:")
	assert.NotContains(t, summary, "Go module")
}
