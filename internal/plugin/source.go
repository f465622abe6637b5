package plugin

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is one markdown file split into its frontmatter and body.
type Record struct {
	Path        string
	Frontmatter Frontmatter
	Body        string
	// HasFrontmatter is false when the file carries no leading --- block.
	HasFrontmatter bool
}

// Source yields component records. The analyzer never touches a filesystem
// itself; it reads through a Source.
type Source interface {
	Read(path string) (Record, error)
}

// FSSource reads markdown component files from an fs.FS.
type FSSource struct {
	FS fs.FS
}

// NewFSSource wraps fsys.
func NewFSSource(fsys fs.FS) *FSSource { return &FSSource{FS: fsys} }

func (s *FSSource) Read(path string) (Record, error) {
	b, err := fs.ReadFile(s.FS, path)
	if err != nil {
		return Record{}, err
	}
	return ParseRecord(path, b)
}

var fence = []byte("---")

// ParseRecord splits a markdown document into YAML frontmatter and body.
// A document without a leading fence is all body. An opening fence with
// no closing one, or YAML that is not a mapping, is an error.
func ParseRecord(path string, content []byte) (Record, error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	text := strings.ReplaceAll(string(content), "\r\n", "\n")

	rec := Record{Path: path, Frontmatter: Frontmatter{}}
	first, rest, _ := strings.Cut(text, "\n")
	if strings.TrimSpace(first) != string(fence) {
		rec.Body = text
		return rec, nil
	}

	var head []string
	lines := strings.Split(rest, "\n")
	closed := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == string(fence) {
			closed = i
			break
		}
		head = append(head, l)
	}
	if closed < 0 {
		return Record{}, fmt.Errorf("unterminated frontmatter")
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal([]byte(strings.Join(head, "\n")), &raw); err != nil {
		return Record{}, fmt.Errorf("invalid frontmatter yaml: %w", err)
	}
	rec.Frontmatter = raw
	rec.HasFrontmatter = true
	rec.Body = strings.Join(lines[closed+1:], "\n")
	return rec, nil
}

// Frontmatter is the decoded YAML header. Keys are accepted in both hyphen
// and underscore spelling ("allowed-tools", "allowed_tools").
type Frontmatter map[string]any

func (f Frontmatter) lookup(key string) (any, bool) {
	for _, k := range []string{key, strings.ReplaceAll(key, "-", "_"), strings.ReplaceAll(key, "_", "-")} {
		if v, ok := f[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String returns a scalar value as text, or "" when absent.
func (f Frontmatter) String(key string) string {
	v, ok := f.lookup(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		// An unquoted "[filename]" hint is a YAML flow sequence.
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, "["+fmt.Sprint(p)+"]")
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(t)
	}
}

// Bool reads a boolean flag. Strings "true"/"yes" count as true.
func (f Frontmatter) Bool(key string) bool {
	v, ok := f.lookup(key)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "on", "1":
			return true
		}
	}
	return false
}

// List reads a tool list given either as a YAML sequence or as a comma
// separated string. Empty entries are dropped.
func (f Frontmatter) List(key string) []string {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	var items []string
	switch t := v.(type) {
	case []any:
		for _, it := range t {
			items = append(items, fmt.Sprint(it))
		}
	case string:
		items = strings.Split(t, ",")
	default:
		items = []string{fmt.Sprint(t)}
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
