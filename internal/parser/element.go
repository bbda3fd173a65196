package parser

// Position is a zero-based line/character pair.
type Position struct {
	Line      int
	Character int
}

// Range is half-open: [Start, End).
type Range struct {
	Start Position
	End   Position
}

// Contains reports whether the given line falls inside the range's rows.
func (r Range) Contains(line int) bool {
	return line >= r.Start.Line && line <= r.End.Line
}

// Element is the atomic unit produced by every extraction query: a job, an
// extends target, a stage name, a variable key. Content holds the raw YAML
// text of the node. Elements are immutable once produced.
type Element struct {
	Key     string
	Content string
	URI     string
	Range   Range
}

// File is the cached verbatim text of a resolved source, local or fetched.
type File struct {
	URI     string
	Content string
}

// ComponentInput describes one entry of a component's spec.inputs contract.
type ComponentInput struct {
	Key         string
	Default     string
	Description string
	Options     []string
	Regex       string
	Type        string
}

// Component is a resolved CI component: the include URI that referenced it,
// the local path of its template file, and its declared inputs.
type Component struct {
	URI       string
	LocalPath string
	Inputs    []ComponentInput
}

// ParseResult aggregates everything one resolution pass produced. The caller
// merges it into the workspace.
type ParseResult struct {
	Files      []File
	Nodes      map[string]map[string]Element
	Stages     []Element
	Variables  []Element
	Components map[string]Component
}

// NewParseResult returns an empty result ready to be filled.
func NewParseResult() *ParseResult {
	return &ParseResult{
		Nodes:      make(map[string]map[string]Element),
		Components: make(map[string]Component),
	}
}

// AddFile records a resolved file once. Returns false if the URI was already
// present, which callers use to break include cycles cheaply.
func (r *ParseResult) AddFile(f File) bool {
	for _, existing := range r.Files {
		if existing.URI == f.URI {
			return false
		}
	}
	r.Files = append(r.Files, f)
	return true
}

// SetNodes replaces the node set contributed by one file.
func (r *ParseResult) SetNodes(uri string, nodes map[string]Element) {
	r.Nodes[uri] = nodes
}
