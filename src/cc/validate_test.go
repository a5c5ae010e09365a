package cc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-build/cc-compile-action/src/fs"
)

type fakeSubPackages struct {
	boundaries map[string]bool
}

func (f fakeSubPackages) IsPackageBoundary(dir fs.Path) bool {
	return f.boundaries[dir.String()]
}

func baseValidateInputs() ValidateInputs {
	mandatory := fs.NewArtifactSet()
	src := fs.NewSourceArtifact(fs.NewPath("pkg/x.cc"))
	mandatory.Add(src)
	return ValidateInputs{
		MandatoryInputs:          mandatory,
		OptionalInputs:           fs.NewArtifactSet(),
		CompilationPrerequisites: fs.NewArtifactSet(),
		InputsKnown:              true,
		ScanIncludesEnabled:      true,
		SourceLabel:              "//pkg:x",
		SourceFile:               "pkg/x.cc",
	}
}

func TestValidateSkippedWhenScanningDisabled(t *testing.T) {
	in := baseValidateInputs()
	in.ScanIncludesEnabled = false
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("elsewhere/undeclared.h")))
	assert.NoError(t, Validate(in))
}

func TestValidateAllowsDeclaredDir(t *testing.T) {
	in := baseValidateInputs()
	in.Context = CompilationContext{DeclaredIncludeDirs: []fs.Path{fs.NewPath("pkg")}}
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")))
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/helper.h")))
	assert.NoError(t, Validate(in))
}

func TestValidateRejectsUndeclaredHeader(t *testing.T) {
	in := baseValidateInputs()
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")))
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("other/undeclared.h")))
	err := Validate(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "other/undeclared.h")
}

func TestValidateWarnDirEmitsEventButNoError(t *testing.T) {
	in := baseValidateInputs()
	in.Context = CompilationContext{DeclaredIncludeWarnDirs: []fs.Path{fs.NewPath("legacy")}}
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")))
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("legacy/old.h")))

	var handled bool
	in.EventSink = eventHandlerFunc(func(kind EventKind, label, msg string) {
		handled = true
		assert.Equal(t, EventWarning, kind)
	})
	assert.NoError(t, Validate(in))
	assert.True(t, handled)
}

func TestValidateWildcardDeclaredDir(t *testing.T) {
	in := baseValidateInputs()
	in.Context = CompilationContext{DeclaredIncludeDirs: []fs.Path{fs.NewPath("pkg/**")}}
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")))
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/deep/nested/q.h")))
	assert.NoError(t, Validate(in))
}

func TestValidateSystemIncludeDirsIgnored(t *testing.T) {
	in := baseValidateInputs()
	in.BuiltInIncludeDirs = []fs.Path{fs.NewPath("usr/include")}
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")))
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("usr/include/stdio.h")))
	assert.NoError(t, Validate(in))
}

func TestValidateSubPackageBoundaryBlocksDeclaration(t *testing.T) {
	in := baseValidateInputs()
	in.Context = CompilationContext{DeclaredIncludeDirs: []fs.Path{fs.NewPath("pkg")}}
	in.SubPackages = fakeSubPackages{boundaries: map[string]bool{"pkg/sub": true}}
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")))
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/sub/q.h")))
	err := Validate(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pkg/sub/q.h")
}

func TestValidateSubPackageWalkFindsAncestorDeclaration(t *testing.T) {
	in := baseValidateInputs()
	in.Context = CompilationContext{DeclaredIncludeDirs: []fs.Path{fs.NewPath("pkg")}}
	in.SubPackages = fakeSubPackages{}
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")))
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/sub/q.h")))
	assert.NoError(t, Validate(in))
}

func TestValidateExactDeclaredSrcMatch(t *testing.T) {
	in := baseValidateInputs()
	hdr := fs.NewSourceArtifact(fs.NewPath("other/special.h"))
	in.Context = CompilationContext{DeclaredIncludeSrcs: []fs.Artifact{hdr}}
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")))
	in.LiveInputs.Add(hdr)
	assert.NoError(t, Validate(in))
}

type eventHandlerFunc func(kind EventKind, label, msg string)

func (f eventHandlerFunc) Handle(kind EventKind, label, msg string) { f(kind, label, msg) }

func TestSetValidationDebugDoesNotAffectVerdict(t *testing.T) {
	SetValidationDebug(true)
	defer SetValidationDebug(false)

	in := baseValidateInputs()
	in.LiveInputs = fs.NewArtifactSet()
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")))
	in.LiveInputs.Add(fs.NewSourceArtifact(fs.NewPath("other/undeclared.h")))
	err := Validate(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "other/undeclared.h")
}
