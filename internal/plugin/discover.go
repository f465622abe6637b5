package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob patterns for the three component directories.
const (
	commandsGlob = "commands/**/*.md"
	skillsGlob   = "skills/*/SKILL.md"
	agentsGlob   = "agents/*.md"
)

// CommandFile pairs a command path with its namespace (the directories
// between commands/ and the file, joined with "/").
type CommandFile struct {
	Path      string
	Namespace string
}

// Inventory lists a plugin's component files, sorted for stable runs.
type Inventory struct {
	Prefix   string
	Manifest *Manifest
	Commands []CommandFile
	Skills   []string
	Agents   []string
}

// Total is the number of component files found.
func (inv Inventory) Total() int {
	return len(inv.Commands) + len(inv.Skills) + len(inv.Agents)
}

// Discover walks fsys for component files. The prefix comes from the
// manifest when there is one; a missing manifest is not an error and
// leaves Prefix empty for the caller to fill.
func Discover(fsys fs.FS) (Inventory, error) {
	var inv Inventory

	m, err := ReadManifest(fsys)
	switch {
	case err == nil:
		inv.Manifest = &m
		inv.Prefix = m.Name
	case errors.Is(err, ErrNoManifest):
	default:
		return Inventory{}, err
	}

	cmds, err := glob(fsys, commandsGlob)
	if err != nil {
		return Inventory{}, err
	}
	for _, p := range cmds {
		inv.Commands = append(inv.Commands, CommandFile{Path: p, Namespace: commandNamespace(p)})
	}
	if inv.Skills, err = glob(fsys, skillsGlob); err != nil {
		return Inventory{}, err
	}
	if inv.Agents, err = glob(fsys, agentsGlob); err != nil {
		return Inventory{}, err
	}
	return inv, nil
}

func glob(fsys fs.FS, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", pattern, err)
	}
	slices.Sort(matches)
	return matches, nil
}

// commandNamespace maps commands/a/b/x.md to "a/b" and commands/x.md to "".
func commandNamespace(p string) string {
	dir := path.Dir(strings.TrimPrefix(p, "commands/"))
	if dir == "." {
		return ""
	}
	return dir
}
