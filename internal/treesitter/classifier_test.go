package treesitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const classifierDoc = `stages:
  - build
include:
  - local: jobs.yml
  - remote: https://example.com/ci.yml
  - component: gitlab.com/grp/proj/lint@1.0.0
  - project: group/templates
    ref: main
    file: /ci.yml
  - basic.yml
.base:
  image: alpine
job:
  extends: .base
  stage: build
  needs:
    - other-job
    - job: dep-job
other-job:
  script: echo $REGION
dep-job:
  script: echo hi
`

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(zap.NewNop().Sugar())
	require.NoError(t, err)
	return c
}

func TestClassify_Extends(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 13, 12)
	assert.Equal(t, KindExtend, pos.Kind)
	assert.Equal(t, ".base", pos.Word)
	assert.Equal(t, 13, pos.Range.Start.Line)
}

func TestClassify_Stage(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 14, 10)
	assert.Equal(t, KindStage, pos.Kind)
	assert.Equal(t, "build", pos.Word)
}

func TestClassify_NeedsScalar(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 16, 8)
	assert.Equal(t, KindNeeds, pos.Kind)
	assert.Equal(t, "other-job", pos.NeedsJob)
}

func TestClassify_NeedsJobMapping(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 17, 12)
	assert.Equal(t, KindNeeds, pos.Kind)
	assert.Equal(t, "dep-job", pos.NeedsJob)
}

func TestClassify_RootNodeKey(t *testing.T) {
	c := newTestClassifier(t)

	pos := c.Classify(classifierDoc, 12, 1)
	assert.Equal(t, KindRootNode, pos.Kind)
	assert.Equal(t, "job", pos.Word)

	pos = c.Classify(classifierDoc, 10, 2)
	assert.Equal(t, KindRootNode, pos.Kind)
	assert.Equal(t, ".base", pos.Word)
}

func TestClassify_Variable(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 19, 17)
	assert.Equal(t, KindVariable, pos.Kind)
}

func TestClassify_IncludeLocal(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 3, 12)
	assert.Equal(t, KindInclude, pos.Kind)
	require.NotNil(t, pos.Include)
	require.NotNil(t, pos.Include.Local)
	assert.Equal(t, "jobs.yml", pos.Include.Local.Path)
}

func TestClassify_IncludeRemote(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 4, 15)
	assert.Equal(t, KindInclude, pos.Kind)
	require.NotNil(t, pos.Include)
	require.NotNil(t, pos.Include.Remote)
	assert.Equal(t, "https://example.com/ci.yml", pos.Include.Remote.URL)
}

func TestClassify_IncludeComponent(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 5, 20)
	assert.Equal(t, KindInclude, pos.Kind)
	require.NotNil(t, pos.Include)
	require.NotNil(t, pos.Include.Component)
	assert.Equal(t, "gitlab.com/grp/proj/lint@1.0.0", pos.Include.Component.URI)
}

func TestClassify_IncludeProject(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 8, 12)
	assert.Equal(t, KindInclude, pos.Kind)
	require.NotNil(t, pos.Include)
	require.NotNil(t, pos.Include.Project)
	assert.Equal(t, "group/templates", pos.Include.Project.Project)
	assert.Equal(t, "main", pos.Include.Project.Ref)
	assert.Equal(t, "/ci.yml", pos.Include.Project.File)
}

func TestClassify_IncludeBasic(t *testing.T) {
	c := newTestClassifier(t)
	pos := c.Classify(classifierDoc, 9, 5)
	assert.Equal(t, KindInclude, pos.Kind)
	require.NotNil(t, pos.Include)
	require.NotNil(t, pos.Include.Basic)
	assert.Equal(t, "basic.yml", pos.Include.Basic.Value)
}

func TestClassify_MalformedYAML(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		line      int
		character int
	}{
		{"tab indentation", "job:\n\tfoo: bar\n", 1, 0},
		{"unclosed flow sequence", "job: [unclosed\n  - more\n", 0, 8},
		{"unclosed flow mapping", "foo:\n  - {bar: a.yml\n", 1, 6},
		{"stray colons", ":::\n: -\n", 1, 2},
	}
	c := newTestClassifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := c.Classify(tt.content, tt.line, tt.character)
			assert.Equal(t, KindNone, pos.Kind)
		})
	}
}

func TestClassify_OutsideContent(t *testing.T) {
	c := newTestClassifier(t)
	assert.Equal(t, KindNone, c.Classify(classifierDoc, 100, 0).Kind)
	assert.Equal(t, KindNone, c.Classify("", 0, 0).Kind)
}

func TestClassify_SameContentReusesTree(t *testing.T) {
	c := newTestClassifier(t)
	first := c.Classify(classifierDoc, 13, 12)
	second := c.Classify(classifierDoc, 13, 12)
	assert.Equal(t, first, second)
}
