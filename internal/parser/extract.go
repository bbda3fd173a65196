package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Symbol extraction over the yaml.v3 node tree. All line/column math converts
// the library's 1-based positions to the zero-based ranges used everywhere
// else.

// ExtractNodes returns every root-level definition of a document keyed by its
// name, each carrying the raw YAML text of its block.
func ExtractNodes(uri, content string) (map[string]Element, error) {
	root, err := parseMapping(content)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]Element)
	if root == nil {
		return nodes, nil
	}

	lines := strings.Split(content, "\n")
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		startLine := key.Line - 1

		// The block runs until the line before the next top-level key, or EOF.
		endLine := len(lines) - 1
		if i+2 < len(root.Content) {
			endLine = root.Content[i+2].Line - 2
		}
		for endLine > startLine && strings.TrimSpace(lines[endLine]) == "" {
			endLine--
		}

		nodes[key.Value] = Element{
			Key:     key.Value,
			Content: strings.Join(lines[startLine:endLine+1], "\n"),
			URI:     uri,
			Range: Range{
				Start: Position{Line: startLine, Character: key.Column - 1},
				End:   Position{Line: endLine, Character: len(lines[endLine])},
			},
		}
	}
	return nodes, nil
}

// ExtractStages returns the entries of a document's top-level stages: list,
// in declaration order. An empty slice means the document defines no stages.
func ExtractStages(uri, content string) ([]Element, error) {
	root, err := parseMapping(content)
	if err != nil {
		return nil, err
	}

	var stages []Element
	value := mappingValue(root, "stages")
	if value == nil || value.Kind != yaml.SequenceNode {
		return stages, nil
	}
	for _, item := range value.Content {
		if item.Kind != yaml.ScalarNode {
			continue
		}
		stages = append(stages, scalarElement(uri, item))
	}
	return stages, nil
}

// ExtractVariables returns the keys of a document's top-level variables:
// block.
func ExtractVariables(uri, content string) ([]Element, error) {
	root, err := parseMapping(content)
	if err != nil {
		return nil, err
	}

	var variables []Element
	value := mappingValue(root, "variables")
	if value == nil || value.Kind != yaml.MappingNode {
		return variables, nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		variables = append(variables, scalarElement(uri, key))
	}
	return variables, nil
}

// ExtractExtendsReferences returns every extends: target in the document,
// scalar or list form, with the range of the referencing scalar.
func ExtractExtendsReferences(uri, content string) ([]Element, error) {
	root, err := parseMapping(content)
	if err != nil {
		return nil, err
	}

	var refs []Element
	eachJobValue(root, func(job *yaml.Node) {
		value := mappingValue(job, "extends")
		if value == nil {
			return
		}
		switch value.Kind {
		case yaml.ScalarNode:
			refs = append(refs, scalarElement(uri, value))
		case yaml.SequenceNode:
			for _, item := range value.Content {
				if item.Kind == yaml.ScalarNode {
					refs = append(refs, scalarElement(uri, item))
				}
			}
		}
	})
	return refs, nil
}

// ExtractStageReferences returns every stage: usage inside root-level jobs.
func ExtractStageReferences(uri, content string) ([]Element, error) {
	root, err := parseMapping(content)
	if err != nil {
		return nil, err
	}

	var refs []Element
	eachJobValue(root, func(job *yaml.Node) {
		value := mappingValue(job, "stage")
		if value != nil && value.Kind == yaml.ScalarNode {
			refs = append(refs, scalarElement(uri, value))
		}
	})
	return refs, nil
}

// ExtractNeedsReferences returns every job referenced from a needs: list,
// covering both the shorthand scalar form and the job: mapping form.
func ExtractNeedsReferences(uri, content string) ([]Element, error) {
	root, err := parseMapping(content)
	if err != nil {
		return nil, err
	}

	var refs []Element
	eachJobValue(root, func(job *yaml.Node) {
		value := mappingValue(job, "needs")
		if value == nil || value.Kind != yaml.SequenceNode {
			return
		}
		for _, item := range value.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				refs = append(refs, scalarElement(uri, item))
			case yaml.MappingNode:
				if jobName := mappingValue(item, "job"); jobName != nil && jobName.Kind == yaml.ScalarNode {
					refs = append(refs, scalarElement(uri, jobName))
				}
			}
		}
	})
	return refs, nil
}

// parseMapping parses a document and returns its root mapping node, or nil
// when the document is empty or not a mapping. Multi-document streams yield
// the last mapping document; component templates put the pipeline content
// after the spec document.
func parseMapping(content string) (*yaml.Node, error) {
	dec := yaml.NewDecoder(strings.NewReader(content))
	var root *yaml.Node
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if len(doc.Content) > 0 && doc.Content[0].Kind == yaml.MappingNode {
			root = doc.Content[0]
		}
	}
	return root, nil
}

// mappingValue returns the value node for key, or nil.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// eachJobValue visits every root-level mapping value.
func eachJobValue(root *yaml.Node, fn func(job *yaml.Node)) {
	if root == nil {
		return
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		value := root.Content[i+1]
		if value.Kind == yaml.MappingNode {
			fn(value)
		}
	}
}

func scalarElement(uri string, node *yaml.Node) Element {
	return Element{
		Key:     node.Value,
		Content: node.Value,
		URI:     uri,
		Range: Range{
			Start: Position{Line: node.Line - 1, Character: node.Column - 1},
			End:   Position{Line: node.Line - 1, Character: node.Column - 1 + len(node.Value)},
		},
	}
}
