package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ComponentInfo is a parsed component URI: gitlab.com/group/proj/name@1.2.3.
type ComponentInfo struct {
	Host      string
	Project   string
	Component string
	Version   string
}

// ParseComponentURI splits a component reference into host, project path,
// component name and version. The version suffix is mandatory.
func ParseComponentURI(raw string) (ComponentInfo, error) {
	ref := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")

	path, version, found := strings.Cut(ref, "@")
	if !found || version == "" {
		return ComponentInfo{}, fmt.Errorf("component %q has no @version", raw)
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 {
		return ComponentInfo{}, fmt.Errorf("component %q is not host/project/name", raw)
	}

	return ComponentInfo{
		Host:      segments[0],
		Project:   strings.Join(segments[1:len(segments)-1], "/"),
		Component: segments[len(segments)-1],
		Version:   version,
	}, nil
}

// TemplatePaths returns the conventional locations of a component's template
// file inside its repository, in lookup order.
func (c ComponentInfo) TemplatePaths() []string {
	return []string{
		filepath.Join("templates", c.Component+".yml"),
		filepath.Join("templates", c.Component+".yaml"),
		filepath.Join("templates", c.Component, "template.yml"),
		filepath.Join("templates", c.Component, "template.yaml"),
	}
}

// FindTemplate locates the component's template file under repoDir, trying
// the conventional paths in order.
func (c ComponentInfo) FindTemplate(repoDir string) (string, error) {
	for _, rel := range c.TemplatePaths() {
		full := filepath.Join(repoDir, rel)
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			return full, nil
		}
	}
	return "", fmt.Errorf("no template found for component %s in %s", c.Component, repoDir)
}

// ParseComponentSpec reads the spec.inputs block of a component template.
// Only the first YAML document is consulted; GitLab separates the spec from
// the pipeline content with a document marker.
func ParseComponentSpec(content string) ([]ComponentInput, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(strings.NewReader(content))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse component spec: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}

	spec := mappingValue(doc.Content[0], "spec")
	if spec == nil {
		return nil, nil
	}
	inputs := mappingValue(spec, "inputs")
	if inputs == nil || inputs.Kind != yaml.MappingNode {
		return nil, nil
	}

	var parsed []ComponentInput
	for i := 0; i+1 < len(inputs.Content); i += 2 {
		key := inputs.Content[i]
		value := inputs.Content[i+1]

		input := ComponentInput{Key: key.Value}
		if value.Kind == yaml.MappingNode {
			if v := mappingValue(value, "default"); v != nil && v.Kind == yaml.ScalarNode {
				input.Default = v.Value
			}
			if v := mappingValue(value, "description"); v != nil && v.Kind == yaml.ScalarNode {
				input.Description = v.Value
			}
			if v := mappingValue(value, "regex"); v != nil && v.Kind == yaml.ScalarNode {
				input.Regex = v.Value
			}
			if v := mappingValue(value, "type"); v != nil && v.Kind == yaml.ScalarNode {
				input.Type = v.Value
			}
			if v := mappingValue(value, "options"); v != nil && v.Kind == yaml.SequenceNode {
				for _, opt := range v.Content {
					if opt.Kind == yaml.ScalarNode {
						input.Options = append(input.Options, opt.Value)
					}
				}
			}
		}
		parsed = append(parsed, input)
	}
	return parsed, nil
}
