// Package inventory collects the technical facts about a repository that feed
// evaluator prompts and the context scorer: lines of code, languages present,
// and Go module metadata when a go.mod exists.
package inventory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// Inventory summarizes a repository's technical shape.
type Inventory struct {
	TotalLines int
	FileCount  int
	// Languages maps file extension (without dot) to file count, for the
	// handful of source extensions we recognize.
	Languages map[string]int

	// Go module metadata, present when the repository has a go.mod.
	ModulePath string
	GoVersion  string
	DirectDeps int
}

// sourceExtensions are the file types counted toward lines of code.
var sourceExtensions = map[string]bool{
	"go": true, "ts": true, "tsx": true, "js": true, "jsx": true,
	"py": true, "rb": true, "java": true, "kt": true, "rs": true,
	"c": true, "h": true, "cpp": true, "cs": true, "php": true,
	"swift": true, "scala": true, "sql": true, "sh": true,
}

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// Collect walks the repository and builds its inventory. Unreadable files are
// skipped; only walk-level failures are fatal.
func Collect(ctx context.Context, root string) (*Inventory, error) {
	inv := &Inventory{Languages: make(map[string]int)}

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			if skipDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(entry.Name()), ".")
		if !sourceExtensions[ext] {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil // unreadable source file, skip
		}
		inv.FileCount++
		inv.Languages[ext]++
		inv.TotalLines += strings.Count(string(content), "\n") + 1
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting inventory: %w", err)
	}

	// go.mod is optional; parse failures degrade to "no module metadata".
	if data, err := os.ReadFile(filepath.Join(root, "go.mod")); err == nil {
		if mod, err := modfile.Parse("go.mod", data, nil); err == nil {
			inv.ModulePath = mod.Module.Mod.Path
			if mod.Go != nil {
				inv.GoVersion = mod.Go.Version
			}
			for _, req := range mod.Require {
				if !req.Indirect {
					inv.DirectDeps++
				}
			}
		}
	}

	return inv, nil
}

// Summary renders the inventory for inclusion in prompts.
func (inv *Inventory) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d source files, %d lines of code\n", inv.FileCount, inv.TotalLines)
	if len(inv.Languages) > 0 {
		exts := make([]string, 0, len(inv.Languages))
		for ext := range inv.Languages {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		langs := make([]string, 0, len(exts))
		for _, ext := range exts {
			langs = append(langs, fmt.Sprintf("%s (%d)", ext, inv.Languages[ext]))
		}
		fmt.Fprintf(&b, "languages: %s\n", strings.Join(langs, ", "))
	}
	if inv.ModulePath != "" {
		fmt.Fprintf(&b, "Go module %s (go %s, %d direct dependencies)\n",
			inv.ModulePath, inv.GoVersion, inv.DirectDeps)
	}
	return b.String()
}
