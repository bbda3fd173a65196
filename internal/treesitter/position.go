package treesitter

import "github.com/mcncl/gitlab-ci-ls/internal/parser"

// Kind classifies the construct under the cursor.
type Kind int

const (
	KindNone Kind = iota
	KindExtend
	KindStage
	KindVariable
	KindRootNode
	KindNeeds
	KindInclude
)

func (k Kind) String() string {
	switch k {
	case KindExtend:
		return "extend"
	case KindStage:
		return "stage"
	case KindVariable:
		return "variable"
	case KindRootNode:
		return "root-node"
	case KindNeeds:
		return "needs"
	case KindInclude:
		return "include"
	default:
		return "none"
	}
}

// PositionType is the classifier's verdict for one cursor position. Word is
// the matched token's text where one exists; Include is set only for
// KindInclude.
type PositionType struct {
	Kind     Kind
	Word     string
	Range    parser.Range
	NeedsJob string
	Include  *IncludeInfo
}

// IncludeInfo is a tagged variant over the recognized include shapes; exactly
// one field is non-nil.
type IncludeInfo struct {
	Local     *LocalIncludeInfo
	Project   *ProjectIncludeInfo
	Remote    *RemoteIncludeInfo
	Basic     *BasicIncludeInfo
	Component *ComponentIncludeInfo
}

// LocalIncludeInfo is an include entry with a local: path.
type LocalIncludeInfo struct {
	Path string
}

// ProjectIncludeInfo is an include entry assembled from project/ref/file
// captures of the same enclosing item. File is the entry under the cursor
// when the cursor sits on one of possibly several files.
type ProjectIncludeInfo struct {
	Project string
	Ref     string
	File    string
	Files   []string
}

// RemoteIncludeInfo is an include entry with an absolute remote: URL.
type RemoteIncludeInfo struct {
	URL string
}

// BasicIncludeInfo is the ambiguous bare-string include form.
type BasicIncludeInfo struct {
	Value string
}

// ComponentIncludeInfo is an include entry referencing a versioned component.
type ComponentIncludeInfo struct {
	URI string
}

func none() PositionType { return PositionType{Kind: KindNone} }
