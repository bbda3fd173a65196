package parser

import (
	"strings"
	"testing"
)

type fakeIndex struct {
	elements map[string][]Element
	def      *Element
}

func (f *fakeIndex) ElementsByKey(key string) []Element {
	return f.elements[key]
}

func (f *fakeIndex) DefaultBlock() (Element, bool) {
	if f.def == nil {
		return Element{}, false
	}
	return *f.def, true
}

func el(uri, key, content string) Element {
	return Element{Key: key, Content: content, URI: uri}
}

func TestMergeWithAncestors_NoExtends(t *testing.T) {
	idx := &fakeIndex{elements: map[string][]Element{}}
	job := el("file:///a.yml", "job", "job:\n  image: alpine\n  script: echo hi")

	out, err := MergeWithAncestors(idx, job)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !strings.Contains(out, "image: alpine") || !strings.Contains(out, "script: echo hi") {
		t.Errorf("merged output missing own keys:\n%s", out)
	}
}

func TestMergeWithAncestors_Chain(t *testing.T) {
	base := el("file:///a.yml", ".base", ".base:\n  image: busybox\n  variables:\n    LOREM: ipsum")
	first := el("file:///a.yml", ".first", ".first:\n  extends: .base\n  stage: test")
	job := el("file:///a.yml", "job", "job:\n  extends: .first\n  image: alpine")

	idx := &fakeIndex{elements: map[string][]Element{
		".base":  {base},
		".first": {first},
		"job":    {job},
	}}

	out, err := MergeWithAncestors(idx, job)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !strings.Contains(out, "image: alpine") {
		t.Errorf("own image should win over ancestor:\n%s", out)
	}
	if strings.Contains(out, "busybox") {
		t.Errorf("ancestor image leaked through:\n%s", out)
	}
	if !strings.Contains(out, "LOREM: ipsum") {
		t.Errorf("inherited variables missing:\n%s", out)
	}
	if !strings.Contains(out, "stage: test") {
		t.Errorf("intermediate ancestor keys missing:\n%s", out)
	}
	if strings.Contains(out, "extends") {
		t.Errorf("extends keys must be dropped:\n%s", out)
	}
}

func TestMergeWithAncestors_Cycle(t *testing.T) {
	a := el("file:///a.yml", ".a", ".a:\n  extends: .b\n  foo: one")
	b := el("file:///a.yml", ".b", ".b:\n  extends: .a\n  bar: two")

	idx := &fakeIndex{elements: map[string][]Element{
		".a": {a},
		".b": {b},
	}}

	out, err := MergeWithAncestors(idx, a)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !strings.Contains(out, "foo: one") || !strings.Contains(out, "bar: two") {
		t.Errorf("cycle merge lost keys:\n%s", out)
	}
}

func TestMergeWithAncestors_ArraysReplace(t *testing.T) {
	base := el("file:///a.yml", ".base", ".base:\n  script:\n    - inherited")
	job := el("file:///a.yml", "job", "job:\n  extends: .base\n  script:\n    - own")

	idx := &fakeIndex{elements: map[string][]Element{
		".base": {base},
		"job":   {job},
	}}

	out, err := MergeWithAncestors(idx, job)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if strings.Contains(out, "inherited") {
		t.Errorf("sequences must replace, not append:\n%s", out)
	}
	if !strings.Contains(out, "own") {
		t.Errorf("own sequence missing:\n%s", out)
	}
}

func TestMergeWithAncestors_NullLosesToValue(t *testing.T) {
	base := el("file:///a.yml", ".base", ".base:\n  retry: 2")
	job := el("file:///a.yml", "job", "job:\n  extends: .base\n  retry:")

	idx := &fakeIndex{elements: map[string][]Element{
		".base": {base},
		"job":   {job},
	}}

	out, err := MergeWithAncestors(idx, job)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !strings.Contains(out, "retry: 2") {
		t.Errorf("null value should lose to the ancestor's value:\n%s", out)
	}
}

func TestMergeWithAncestors_DefaultBlock(t *testing.T) {
	def := el("file:///a.yml", "default", "default:\n  image: busybox\n  interruptible: true")
	job := el("file:///a.yml", "job", "job:\n  image: alpine")

	idx := &fakeIndex{
		elements: map[string][]Element{"job": {job}},
		def:      &def,
	}

	out, err := MergeWithAncestors(idx, job)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !strings.Contains(out, "image: alpine") {
		t.Errorf("job image should beat the default block:\n%s", out)
	}
	if !strings.Contains(out, "interruptible: true") {
		t.Errorf("default block should fill unset keys:\n%s", out)
	}
}

func TestMergeWithAncestors_Deterministic(t *testing.T) {
	base := el("file:///a.yml", ".base", ".base:\n  image: busybox")
	other := el("file:///b.yml", ".base", ".base:\n  image: debian")
	job := el("file:///a.yml", "job", "job:\n  extends: .base")

	idx := &fakeIndex{elements: map[string][]Element{
		".base": {base, other},
		"job":   {job},
	}}

	first, err := MergeWithAncestors(idx, job)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := MergeWithAncestors(idx, job)
		if err != nil {
			t.Fatalf("merge failed: %v", err)
		}
		if again != first {
			t.Fatalf("merge output changed between runs:\n%s\nvs\n%s", first, again)
		}
	}
}

func TestMergeWithAncestors_Unparsable(t *testing.T) {
	idx := &fakeIndex{elements: map[string][]Element{}}
	job := el("file:///a.yml", "job", "job: [unclosed")

	out, err := MergeWithAncestors(idx, job)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if out != "job: [unclosed" {
		t.Errorf("unparsable element should fall back to raw text, got:\n%s", out)
	}
}
