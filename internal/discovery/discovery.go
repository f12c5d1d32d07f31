// Package discovery locates the documentation inputs for an evaluation run:
// AGENTS.md/CLAUDE.md-style context files, agent skills, and the local
// documents those files link to.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ContextFile is one discovered context file with its content loaded.
type ContextFile struct {
	// Path is relative to the repository root, using forward slashes.
	Path    string
	Content string
	// IsRoot marks a context file at the repository root (as opposed to one
	// nested in a subdirectory).
	IsRoot bool
	Lines  int
}

// Skill is a discovered agent skill (a SKILL.md under a skills directory).
type Skill struct {
	Name string
	Path string
}

// LinkedDoc is a local document referenced from a context file.
type LinkedDoc struct {
	Path   string
	Source string // context file containing the link
}

// Discoverer locates evaluation inputs under a repository root.
type Discoverer interface {
	DiscoverContextFiles(ctx context.Context, root string) ([]ContextFile, error)
	DiscoverSkills(ctx context.Context, root string) ([]Skill, error)
	DiscoverLinkedDocs(ctx context.Context, root string, files []ContextFile) ([]LinkedDoc, error)
}

// contextFileNames are the filenames treated as context files, at any depth.
var contextFileNames = map[string]bool{
	"AGENTS.md":    true,
	"CLAUDE.md":    true,
	"GEMINI.md":    true,
	".cursorrules": true,
}

// skipDirs are directories never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

var markdownLinkRegex = regexp.MustCompile(`\[[^\]]*\]\(([^)\s#]+)[^)]*\)`)

// FSDiscoverer discovers inputs by walking the local filesystem.
type FSDiscoverer struct{}

// Compile-time check that FSDiscoverer implements Discoverer.
var _ Discoverer = (*FSDiscoverer)(nil)

// NewFSDiscoverer creates a filesystem discoverer.
func NewFSDiscoverer() *FSDiscoverer {
	return &FSDiscoverer{}
}

// DiscoverContextFiles walks root and loads every context file found.
func (d *FSDiscoverer) DiscoverContextFiles(ctx context.Context, root string) ([]ContextFile, error) {
	var files []ContextFile

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
		if !contextFileNames[entry.Name()] {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		files = append(files, ContextFile{
			Path:    rel,
			Content: string(content),
			IsRoot:  !strings.Contains(rel, "/"),
			Lines:   strings.Count(string(content), "\n") + 1,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering context files: %w", err)
	}
	return files, nil
}

// DiscoverSkills finds SKILL.md files under .claude/skills/<name>/.
func (d *FSDiscoverer) DiscoverSkills(ctx context.Context, root string) ([]Skill, error) {
	skillsDir := filepath.Join(root, ".claude", "skills")
	entries, err := os.ReadDir(skillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading skills directory: %w", err)
	}

	var skills []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillFile := filepath.Join(skillsDir, entry.Name(), "SKILL.md")
		if _, err := os.Stat(skillFile); err != nil {
			continue
		}
		rel, _ := filepath.Rel(root, skillFile)
		skills = append(skills, Skill{
			Name: entry.Name(),
			Path: filepath.ToSlash(rel),
		})
	}
	return skills, nil
}

// DiscoverLinkedDocs extracts markdown links from the context files and keeps
// those that resolve to existing local files.
func (d *FSDiscoverer) DiscoverLinkedDocs(ctx context.Context, root string, files []ContextFile) ([]LinkedDoc, error) {
	seen := make(map[string]bool)
	var docs []LinkedDoc

	for _, file := range files {
		baseDir := filepath.Dir(filepath.Join(root, filepath.FromSlash(file.Path)))
		for _, match := range markdownLinkRegex.FindAllStringSubmatch(file.Content, -1) {
			target := match[1]
			if strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") {
				continue
			}
			resolved := filepath.Join(baseDir, filepath.FromSlash(target))
			info, err := os.Stat(resolved)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(root, resolved)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] {
				continue
			}
			seen[rel] = true
			docs = append(docs, LinkedDoc{Path: rel, Source: file.Path})
		}
	}
	return docs, nil
}
