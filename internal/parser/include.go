package parser

import (
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	"gopkg.in/yaml.v3"
)

// IncludeTarget is one entry of a document's include: directive.
type IncludeTarget interface {
	includeTarget()
}

// LocalInclude references a file in the same repository, relative to the
// repository root. The path may contain GitLab-style glob patterns.
type LocalInclude struct {
	Path string
}

// ProjectInclude references one or more files from another GitLab project,
// optionally pinned to a ref.
type ProjectInclude struct {
	Project string
	Ref     string
	Files   []string
}

// RemoteInclude references a file by absolute URL.
type RemoteInclude struct {
	URL string
}

// BasicInclude is the ambiguous shorthand form: a bare string that is either
// a URL or a local path.
type BasicInclude struct {
	Value string
}

// ComponentInclude references a versioned CI component by its
// host/project/name@version URI.
type ComponentInclude struct {
	URI string
}

func (LocalInclude) includeTarget()     {}
func (ProjectInclude) includeTarget()   {}
func (RemoteInclude) includeTarget()    {}
func (BasicInclude) includeTarget()     {}
func (ComponentInclude) includeTarget() {}

// IsURL reports whether the basic include parses as an absolute http(s) URL.
func (b BasicInclude) IsURL() bool {
	u, err := url.Parse(b.Value)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// ParseIncludes extracts the include: directive of a document. The directive
// accepts a single string, a single mapping, or a list mixing both forms.
// Entries that match no known shape are skipped.
func ParseIncludes(content string) ([]IncludeTarget, error) {
	root, err := parseMapping(content)
	if err != nil {
		return nil, err
	}

	value := mappingValue(root, "include")
	if value == nil {
		return nil, nil
	}

	var targets []IncludeTarget
	switch value.Kind {
	case yaml.ScalarNode:
		targets = appendIncludeScalar(targets, value)
	case yaml.MappingNode:
		targets = appendIncludeMapping(targets, value)
	case yaml.SequenceNode:
		for _, item := range value.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				targets = appendIncludeScalar(targets, item)
			case yaml.MappingNode:
				targets = appendIncludeMapping(targets, item)
			}
		}
	}
	return targets, nil
}

func appendIncludeScalar(targets []IncludeTarget, node *yaml.Node) []IncludeTarget {
	if node.Value == "" {
		return targets
	}
	return append(targets, BasicInclude{Value: node.Value})
}

func appendIncludeMapping(targets []IncludeTarget, node *yaml.Node) []IncludeTarget {
	if local := mappingValue(node, "local"); local != nil && local.Kind == yaml.ScalarNode {
		return append(targets, LocalInclude{Path: local.Value})
	}
	if remote := mappingValue(node, "remote"); remote != nil && remote.Kind == yaml.ScalarNode {
		return append(targets, RemoteInclude{URL: remote.Value})
	}
	if component := mappingValue(node, "component"); component != nil && component.Kind == yaml.ScalarNode {
		return append(targets, ComponentInclude{URI: component.Value})
	}
	if project := mappingValue(node, "project"); project != nil && project.Kind == yaml.ScalarNode {
		target := ProjectInclude{Project: project.Value}
		if ref := mappingValue(node, "ref"); ref != nil && ref.Kind == yaml.ScalarNode {
			target.Ref = ref.Value
		}
		if file := mappingValue(node, "file"); file != nil {
			switch file.Kind {
			case yaml.ScalarNode:
				target.Files = append(target.Files, file.Value)
			case yaml.SequenceNode:
				for _, f := range file.Content {
					if f.Kind == yaml.ScalarNode {
						target.Files = append(target.Files, f.Value)
					}
				}
			}
		}
		if len(target.Files) > 0 {
			return append(targets, target)
		}
	}
	return targets
}

// ExpandLocalGlob resolves a local include path against baseDir. Plain paths
// resolve to themselves. Glob patterns follow GitLab semantics: config/**/*.yml
// matches only files in nested subdirectories of config/, never files directly
// inside it. That is computed by matching the flattened pattern (config/*.yml)
// first and subtracting it from the recursive match.
func ExpandLocalGlob(baseDir, pattern string) ([]string, error) {
	clean := strings.TrimPrefix(pattern, "/")
	full := filepath.Join(baseDir, clean)

	if !strings.Contains(clean, "*") {
		if _, err := os.Stat(full); err != nil {
			return nil, err
		}
		return []string{full}, nil
	}

	matches, err := doublestar.Glob(filepath.Join(baseDir, recursiveGlob(clean)))
	if err != nil {
		return nil, err
	}

	if flat, ok := flattenGlob(clean); ok {
		excluded, err := doublestar.Glob(filepath.Join(baseDir, flat))
		if err != nil {
			return nil, err
		}
		exclude := make(map[string]bool, len(excluded))
		for _, m := range excluded {
			exclude[m] = true
		}
		kept := matches[:0]
		for _, m := range matches {
			if !exclude[m] {
				kept = append(kept, m)
			}
		}
		matches = kept
	}

	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

// recursiveGlob rewrites the **.ext shorthand into the explicit recursive
// form: config/**.yml -> config/**/*.yml. The matcher treats a ** glued to a
// suffix as a plain *, which would make the shorthand match nothing once the
// flat pattern is subtracted.
func recursiveGlob(pattern string) string {
	if i := strings.Index(pattern, "**"); i >= 0 {
		rest := pattern[i+2:]
		if rest != "" && !strings.HasPrefix(rest, "/") {
			return strings.Replace(pattern, "**", "**/*", 1)
		}
	}
	return pattern
}

// flattenGlob rewrites a recursive pattern into its single-level equivalent:
// config/**/*.yml -> config/*.yml, config/**.yml -> config/*.yml.
func flattenGlob(pattern string) (string, bool) {
	switch {
	case strings.Contains(pattern, "**/*"):
		return strings.Replace(pattern, "**/*", "*", 1), true
	case strings.Contains(pattern, "**"):
		return strings.Replace(pattern, "**", "*", 1), true
	}
	return "", false
}
