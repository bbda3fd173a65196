package lsp

import (
	"testing"

	"go.lsp.dev/protocol"
)

func TestDocumentManager(t *testing.T) {
	dm := NewDocumentManager()
	uri := protocol.DocumentURI("file:///ci.yml")

	if _, ok := dm.Get(uri); ok {
		t.Fatal("unopened document should not exist")
	}

	dm.Open(uri, 1, "job:\n  script: echo\n")
	doc, ok := dm.Get(uri)
	if !ok {
		t.Fatal("opened document missing")
	}
	if doc.Version != 1 {
		t.Errorf("wrong version: %d", doc.Version)
	}
	if doc.Line(1) != "  script: echo" {
		t.Errorf("wrong line: %q", doc.Line(1))
	}

	dm.Update(uri, 2, "other:\n  script: true\n")
	doc, _ = dm.Get(uri)
	if doc.Version != 2 || doc.Line(0) != "other:" {
		t.Errorf("update not applied: %+v", doc)
	}

	dm.Close(uri)
	if _, ok := dm.Get(uri); ok {
		t.Error("closed document still present")
	}
}

func TestDocumentManager_UpdateUnknownURI(t *testing.T) {
	dm := NewDocumentManager()
	uri := protocol.DocumentURI("file:///never-opened.yml")

	dm.Update(uri, 1, "job: {}")
	if _, ok := dm.Get(uri); !ok {
		t.Error("update should create an unknown document")
	}
}

func TestDocumentLine_Bounds(t *testing.T) {
	doc := newDocument("file:///a.yml", 1, "one\ntwo")
	if doc.Line(-1) != "" || doc.Line(2) != "" {
		t.Error("out-of-bounds lines should be empty")
	}
	if doc.Line(1) != "two" {
		t.Errorf("wrong line: %q", doc.Line(1))
	}
}

func TestSplitLines_CRLF(t *testing.T) {
	lines := splitLines("a\r\nb\r\n")
	if len(lines) != 3 || lines[0] != "a" || lines[1] != "b" || lines[2] != "" {
		t.Errorf("wrong lines: %q", lines)
	}
}
