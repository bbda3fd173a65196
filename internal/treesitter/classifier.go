package treesitter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/yaml"
	"go.uber.org/zap"

	"github.com/mcncl/gitlab-ci-ls/internal/parser"
)

const treeCacheSize = 32

// Classifier maps (document, cursor) to a tagged construct by running one
// structural pattern pass over the document's syntax tree. It never fails on
// malformed YAML; unmatched positions classify as None.
type Classifier struct {
	mu     sync.Mutex
	parser *sitter.Parser
	lang   *sitter.Language
	trees  *lru.Cache[string, *sitter.Tree]
	log    *zap.SugaredLogger

	qExtends     *sitter.Query
	qStage       *sitter.Query
	qVariable    *sitter.Query
	qNeedsScalar *sitter.Query
	qNeedsJob    *sitter.Query
	qRootNode    *sitter.Query
	qIncludePair *sitter.Query
	qIncludeBare *sitter.Query
}

// NewClassifier compiles the query set once. A query that fails to compile is
// a programming error and surfaces immediately.
func NewClassifier(log *zap.SugaredLogger) (*Classifier, error) {
	lang := yaml.GetLanguage()
	p := sitter.NewParser()
	p.SetLanguage(lang)

	trees, err := lru.New[string, *sitter.Tree](treeCacheSize)
	if err != nil {
		return nil, err
	}

	c := &Classifier{parser: p, lang: lang, trees: trees, log: log}
	for _, q := range []struct {
		dst     **sitter.Query
		pattern string
	}{
		{&c.qExtends, queryExtends},
		{&c.qStage, queryStage},
		{&c.qVariable, queryVariableValue},
		{&c.qNeedsScalar, queryNeedsScalar},
		{&c.qNeedsJob, queryNeedsJob},
		{&c.qRootNode, queryRootNode},
		{&c.qIncludePair, queryIncludeItemPair},
		{&c.qIncludeBare, queryIncludeBasic},
	} {
		compiled, err := sitter.NewQuery([]byte(q.pattern), lang)
		if err != nil {
			return nil, fmt.Errorf("compile query: %w", err)
		}
		*q.dst = compiled
	}
	return c, nil
}

// Classify returns the construct at the zero-based cursor position. Matching
// runs most specific first; a top-level key that also matched a narrower
// shape reports the narrower one.
func (c *Classifier) Classify(content string, line, character int) PositionType {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := []byte(content)
	root := c.parse(src, content)
	if root == nil {
		return none()
	}

	if pos := c.classifyInclude(root, src, line, character); pos.Kind != KindNone {
		return pos
	}
	if pos := c.classifyNeeds(root, src, line, character); pos.Kind != KindNone {
		return pos
	}
	if pos := c.classifyValueToken(c.qExtends, KindExtend, root, src, line, character); pos.Kind != KindNone {
		return pos
	}
	if pos := c.classifyValueToken(c.qStage, KindStage, root, src, line, character); pos.Kind != KindNone {
		return pos
	}
	if pos := c.classifyVariable(root, src, line, character); pos.Kind != KindNone {
		return pos
	}
	return c.classifyRootNode(root, src, line, character)
}

// parse returns the root node of the document's tree, reusing a cached tree
// for unchanged content.
func (c *Classifier) parse(src []byte, content string) *sitter.Node {
	sum := sha256.Sum256(src)
	key := hex.EncodeToString(sum[:])
	if tree, ok := c.trees.Get(key); ok {
		return tree.RootNode()
	}
	tree, err := c.parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		c.log.Debugw("tree-sitter parse failed", "error", err)
		return nil
	}
	c.trees.Add(key, tree)
	return tree.RootNode()
}

// capture is one named query capture.
type capture struct {
	name string
	node *sitter.Node
}

// eachMatch runs a query against root and invokes fn with the named captures
// of every match that survives predicate filtering.
func (c *Classifier) eachMatch(q *sitter.Query, root *sitter.Node, src []byte, fn func(caps []capture)) {
	qc := sitter.NewQueryCursor()
	qc.Exec(q, root)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, src)
		if len(m.Captures) == 0 {
			continue
		}
		caps := make([]capture, 0, len(m.Captures))
		for _, mc := range m.Captures {
			caps = append(caps, capture{name: q.CaptureNameForId(mc.Index), node: mc.Node})
		}
		fn(caps)
	}
}

func (c *Classifier) classifyValueToken(q *sitter.Query, kind Kind, root *sitter.Node, src []byte, line, character int) PositionType {
	result := none()
	c.eachMatch(q, root, src, func(caps []capture) {
		for _, cp := range caps {
			if cp.name == "value" && nodeContains(cp.node, line, character) {
				result = PositionType{
					Kind:  kind,
					Word:  cp.node.Content(src),
					Range: nodeRange(cp.node),
				}
			}
		}
	})
	return result
}

func (c *Classifier) classifyVariable(root *sitter.Node, src []byte, line, character int) PositionType {
	result := none()
	c.eachMatch(c.qVariable, root, src, func(caps []capture) {
		for _, cp := range caps {
			// The whole value block counts; the caller extracts the token
			// under the cursor from the line text.
			if cp.name == "value" && nodeOnRows(cp.node, line) {
				result = PositionType{Kind: KindVariable, Range: nodeRange(cp.node)}
			}
		}
	})
	return result
}

func (c *Classifier) classifyNeeds(root *sitter.Node, src []byte, line, character int) PositionType {
	result := none()
	for _, q := range []*sitter.Query{c.qNeedsJob, c.qNeedsScalar} {
		c.eachMatch(q, root, src, func(caps []capture) {
			for _, cp := range caps {
				if cp.name == "job" && nodeContains(cp.node, line, character) {
					job := cp.node.Content(src)
					result = PositionType{
						Kind:     KindNeeds,
						Word:     job,
						NeedsJob: job,
						Range:    nodeRange(cp.node),
					}
				}
			}
		})
		if result.Kind != KindNone {
			return result
		}
	}
	return result
}

func (c *Classifier) classifyRootNode(root *sitter.Node, src []byte, line, character int) PositionType {
	result := none()
	c.eachMatch(c.qRootNode, root, src, func(caps []capture) {
		var key, pair *sitter.Node
		for _, cp := range caps {
			switch cp.name {
			case "key":
				key = cp.node
			case "pair":
				pair = cp.node
			}
		}
		if key == nil || pair == nil {
			return
		}
		// Only the key itself classifies as a root node; deeper positions
		// inside the block belong to narrower shapes or to nothing.
		if nodeContains(key, line, character) {
			result = PositionType{
				Kind:  KindRootNode,
				Word:  key.Content(src),
				Range: nodeRange(pair),
			}
		}
	})
	return result
}

// includeItem accumulates the captures of one structured include entry,
// keyed by the enclosing list item node.
type includeItem struct {
	item   *sitter.Node
	fields map[string]string
	files  []string
	// fileAt remembers which file scalar the cursor sits on.
	fileAt string
}

func (c *Classifier) classifyInclude(root *sitter.Node, src []byte, line, character int) PositionType {
	items := make(map[uint32]*includeItem)
	order := make([]uint32, 0, 4)

	c.eachMatch(c.qIncludePair, root, src, func(caps []capture) {
		var itemNode, keyNode, valueNode, fileNode *sitter.Node
		for _, cp := range caps {
			switch cp.name {
			case "item":
				itemNode = cp.node
			case "itemkey":
				keyNode = cp.node
			case "itemvalue":
				valueNode = cp.node
			case "filevalue":
				fileNode = cp.node
			}
		}
		if itemNode == nil || keyNode == nil {
			return
		}
		id := itemNode.StartByte()
		entry, ok := items[id]
		if !ok {
			entry = &includeItem{item: itemNode, fields: make(map[string]string)}
			items[id] = entry
			order = append(order, id)
		}
		key := keyNode.Content(src)
		switch {
		case fileNode != nil && key == "file":
			file := fileNode.Content(src)
			entry.files = append(entry.files, file)
			if nodeContains(fileNode, line, character) {
				entry.fileAt = file
			}
		case valueNode != nil:
			value := valueNode.Content(src)
			entry.fields[key] = value
			if key == "file" {
				entry.files = append(entry.files, value)
				if nodeContains(valueNode, line, character) {
					entry.fileAt = value
				}
			}
		}
	})

	for _, id := range order {
		entry := items[id]
		if !nodeOnRows(entry.item, line) {
			continue
		}
		if pos, ok := entry.classify(); ok {
			pos.Range = nodeRange(entry.item)
			return pos
		}
	}

	// Bare string entries.
	result := none()
	c.eachMatch(c.qIncludeBare, root, src, func(caps []capture) {
		for _, cp := range caps {
			if cp.name == "basic" && nodeContains(cp.node, line, character) {
				value := cp.node.Content(src)
				result = PositionType{
					Kind:    KindInclude,
					Word:    value,
					Range:   nodeRange(cp.node),
					Include: &IncludeInfo{Basic: &BasicIncludeInfo{Value: value}},
				}
			}
		}
	})
	return result
}

// classify decides which include shape an assembled entry is. Project
// entries are only complete with both project and at least one file.
func (e *includeItem) classify() (PositionType, bool) {
	if path, ok := e.fields["local"]; ok {
		return PositionType{
			Kind:    KindInclude,
			Word:    path,
			Include: &IncludeInfo{Local: &LocalIncludeInfo{Path: path}},
		}, true
	}
	if url, ok := e.fields["remote"]; ok {
		return PositionType{
			Kind:    KindInclude,
			Word:    url,
			Include: &IncludeInfo{Remote: &RemoteIncludeInfo{URL: url}},
		}, true
	}
	if uri, ok := e.fields["component"]; ok {
		return PositionType{
			Kind:    KindInclude,
			Word:    uri,
			Include: &IncludeInfo{Component: &ComponentIncludeInfo{URI: uri}},
		}, true
	}
	if project, ok := e.fields["project"]; ok && len(e.files) > 0 {
		file := e.fileAt
		if file == "" {
			file = e.files[0]
		}
		return PositionType{
			Kind: KindInclude,
			Word: file,
			Include: &IncludeInfo{Project: &ProjectIncludeInfo{
				Project: project,
				Ref:     e.fields["ref"],
				File:    file,
				Files:   append([]string(nil), e.files...),
			}},
		}, true
	}
	return none(), false
}

func nodeContains(n *sitter.Node, line, character int) bool {
	s, e := n.StartPoint(), n.EndPoint()
	row, col := uint32(line), uint32(character)
	if row < s.Row || row > e.Row {
		return false
	}
	if row == s.Row && col < s.Column {
		return false
	}
	if row == e.Row && col > e.Column {
		return false
	}
	return true
}

func nodeOnRows(n *sitter.Node, line int) bool {
	row := uint32(line)
	return row >= n.StartPoint().Row && row <= n.EndPoint().Row
}

func nodeRange(n *sitter.Node) parser.Range {
	s, e := n.StartPoint(), n.EndPoint()
	return parser.Range{
		Start: parser.Position{Line: int(s.Row), Character: int(s.Column)},
		End:   parser.Position{Line: int(e.Row), Character: int(e.Column)},
	}
}
