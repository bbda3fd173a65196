package parser

import (
	"fmt"
	"hash/fnv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Merge engine: computes a job's fully-resolved definition the way GitLab
// evaluates extends chains, for hover display.

const (
	// maxExtendsDepth bounds ancestor collection; deeper branches are
	// silently truncated.
	maxExtendsDepth = 5

	// defaultLevel places the workspace default: block far below every real
	// ancestor so it only ever contributes values nothing else sets.
	defaultLevel = 1 << 16

	rootPath = "root"
)

// NodeIndex is the view of the workspace the merge engine needs: same-key
// element lookup across all indexed files plus the single default: block.
type NodeIndex interface {
	ElementsByKey(key string) []Element
	DefaultBlock() (Element, bool)
}

// ancestorEntry is one collected ancestor: the element's value node together
// with its discovery level and dotted parent path.
type ancestorEntry struct {
	element Element
	node    *yaml.Node
	level   int
	path    string
}

// MergeWithAncestors resolves el against its extends chain and returns the
// merged definition serialized back to YAML under the element's own key.
// Serialization is the only step that can fail.
func MergeWithAncestors(idx NodeIndex, el Element) (string, error) {
	own, err := elementValue(el)
	if err != nil {
		// The selected element itself does not parse; fall back to its raw
		// text so hover still shows something.
		return el.Content, nil
	}

	ancestors := collectAncestors(idx, el)

	if def, ok := idx.DefaultBlock(); ok && def.Key != el.Key {
		if node, err := elementValue(def); err == nil && node != nil {
			ancestors = append(ancestors, ancestorEntry{
				element: def,
				node:    node,
				level:   defaultLevel,
				path:    rootPath + ".default",
			})
		}
	}

	// Fold least specific first so every later merge only has to pick a
	// primary between the accumulator and the next entry.
	sortByLevelDescending(ancestors)

	var acc *ancestorEntry
	for i := range ancestors {
		acc = mergePair(acc, &ancestors[i])
	}

	// The originally selected element's own content always wins last.
	final := mergePair(acc, &ancestorEntry{element: el, node: own, level: -1, path: rootPath})

	merged := stripKey(final.node, "extends")
	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: el.Key},
			merged,
		},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("serialize merged node %q: %w", el.Key, err)
	}
	return string(out), nil
}

// collectAncestors walks the extends graph with an explicit worklist: from
// the target at level 0, each step adds same-key duplicates across merged
// files and the targets of extends:, one level deeper with an extended dotted
// path. A structural hash set keeps cyclic and diamond graphs finite; levels
// beyond maxExtendsDepth stop expanding.
func collectAncestors(idx NodeIndex, el Element) []ancestorEntry {
	type workItem struct {
		element Element
		level   int
		path    string
	}

	seen := map[uint64]bool{structuralHash(el): true}
	worklist := []workItem{{element: el, level: 0, path: rootPath}}

	var ancestors []ancestorEntry
	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		node, err := elementValue(item.element)
		if err != nil || node == nil {
			continue
		}
		if item.level > 0 {
			ancestors = append(ancestors, ancestorEntry{
				element: item.element,
				node:    node,
				level:   item.level,
				path:    item.path,
			})
		}
		if item.level >= maxExtendsDepth {
			continue
		}

		next := make([]string, 0, 4)
		// Re-declarations of the same key in other merged files.
		next = append(next, item.element.Key)
		next = append(next, extendsTargets(node)...)

		for _, key := range next {
			for _, candidate := range idx.ElementsByKey(key) {
				h := structuralHash(candidate)
				if seen[h] {
					continue
				}
				seen[h] = true
				worklist = append(worklist, workItem{
					element: candidate,
					level:   item.level + 1,
					path:    item.path + "." + key,
				})
			}
		}
	}
	return ancestors
}

// mergePair folds b into acc and returns the merged entry, which inherits the
// primary side's level and path.
func mergePair(acc, b *ancestorEntry) *ancestorEntry {
	if acc == nil {
		return b
	}
	primary, secondary := acc, b
	if !isPrimary(acc, b) {
		primary, secondary = b, acc
	}
	return &ancestorEntry{
		element: primary.element,
		node:    mergeValues(primary.node, secondary.node),
		level:   primary.level,
		path:    primary.path,
	}
}

// isPrimary decides which of two entries is more specific to the original
// request: the one whose dotted parent path is a prefix of the other's. When
// neither prefixes the other, the smaller level wins.
func isPrimary(a, b *ancestorEntry) bool {
	switch {
	case strings.HasPrefix(b.path, a.path):
		return true
	case strings.HasPrefix(a.path, b.path):
		return false
	default:
		return a.level <= b.level
	}
}

// mergeValues applies the pairwise merge rule: mappings merge key by key with
// extends dropped, arrays are never element-merged, and for scalars null
// loses to non-null, otherwise the primary wins.
func mergeValues(primary, secondary *yaml.Node) *yaml.Node {
	switch {
	case primary == nil:
		return secondary
	case secondary == nil:
		return primary
	case primary.Kind == yaml.MappingNode && secondary.Kind == yaml.MappingNode:
		return mergeMappings(primary, secondary)
	case primary.Kind == yaml.SequenceNode || secondary.Kind == yaml.SequenceNode:
		if primary.Kind == yaml.SequenceNode {
			return primary
		}
		return secondary
	default:
		if isNullNode(primary) && !isNullNode(secondary) {
			return secondary
		}
		return primary
	}
}

func mergeMappings(primary, secondary *yaml.Node) *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	taken := make(map[string]bool)
	for i := 0; i+1 < len(primary.Content); i += 2 {
		key := primary.Content[i]
		if key.Value == "extends" {
			continue
		}
		taken[key.Value] = true
		value := mergeValues(primary.Content[i+1], mappingValue(secondary, key.Value))
		out.Content = append(out.Content, cloneNode(key), value)
	}
	for i := 0; i+1 < len(secondary.Content); i += 2 {
		key := secondary.Content[i]
		if key.Value == "extends" || taken[key.Value] {
			continue
		}
		out.Content = append(out.Content, cloneNode(key), secondary.Content[i+1])
	}
	return out
}

// elementValue parses the element's raw text and returns the value node under
// its own key. A nil node means the element has no body.
func elementValue(el Element) (*yaml.Node, error) {
	root, err := parseMapping(el.Content)
	if err != nil {
		return nil, err
	}
	return mappingValue(root, el.Key), nil
}

// extendsTargets lists the extends: targets of a job value node.
func extendsTargets(node *yaml.Node) []string {
	value := mappingValue(node, "extends")
	if value == nil {
		return nil
	}
	switch value.Kind {
	case yaml.ScalarNode:
		return []string{value.Value}
	case yaml.SequenceNode:
		var targets []string
		for _, item := range value.Content {
			if item.Kind == yaml.ScalarNode {
				targets = append(targets, item.Value)
			}
		}
		return targets
	}
	return nil
}

// structuralHash identifies an element across the worklist; distinct
// re-declarations hash differently, re-visits of the same one collide.
func structuralHash(el Element) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(el.URI))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(el.Key))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(el.Content))
	return h.Sum64()
}

func sortByLevelDescending(entries []ancestorEntry) {
	// Insertion sort keeps discovery order stable for equal levels, which
	// the determinism guarantee relies on.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].level < entries[j].level; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

func stripKey(node *yaml.Node, key string) *yaml.Node {
	if node == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	if node.Kind != yaml.MappingNode {
		return node
	}
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			continue
		}
		out.Content = append(out.Content, node.Content[i], node.Content[i+1])
	}
	return out
}

func isNullNode(node *yaml.Node) bool {
	return node.Tag == "!!null" || (node.Kind == yaml.ScalarNode && node.Value == "")
}

func cloneNode(node *yaml.Node) *yaml.Node {
	clone := *node
	return &clone
}
