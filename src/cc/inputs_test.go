package cc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-build/cc-compile-action/src/fs"
)

type mapResolver map[string]fs.Artifact

func (m mapResolver) ResolveSourceArtifact(p fs.Path) (fs.Artifact, bool) {
	a, ok := m[p.String()]
	return a, ok
}

type fakeReply struct {
	data []byte
}

func (f fakeReply) Contents() []byte { return f.data }

func TestUpdateInputsResolvesDiscoveredHeaders(t *testing.T) {
	src := fs.NewSourceArtifact(fs.NewPath("pkg/x.cc"))
	hdr := fs.NewSourceArtifact(fs.NewPath("pkg/x.h"))

	mandatory := fs.NewArtifactSet()
	mandatory.Add(src)

	dotd := fs.NewVirtualDotdFile(fs.NewPath("pkg/x.d"))
	live, err := UpdateInputs(UpdateInputsInputs{
		MandatoryInputs:          mandatory,
		OptionalInputs:           fs.NewArtifactSet(),
		CompilationPrerequisites: fs.NewArtifactSet(),
		SourceArtifact:           src,
		DotdFile:                 dotd,
		Reply:                    fakeReply{data: []byte("x.o: pkg/x.cc pkg/x.h\n")},
		Resolver:                 mapResolver{"pkg/x.cc": src, "pkg/x.h": hdr},
		SourceLabel:              "//pkg:x",
		SourceFile:               "pkg/x.cc",
	})
	require.NoError(t, err)
	assert.True(t, live.Contains(hdr))
}

func TestUpdateInputsUnresolvedDependencyIsFatal(t *testing.T) {
	src := fs.NewSourceArtifact(fs.NewPath("pkg/x.cc"))
	mandatory := fs.NewArtifactSet()
	mandatory.Add(src)

	dotd := fs.NewVirtualDotdFile(fs.NewPath("pkg/x.d"))
	_, err := UpdateInputs(UpdateInputsInputs{
		MandatoryInputs:          mandatory,
		OptionalInputs:           fs.NewArtifactSet(),
		CompilationPrerequisites: fs.NewArtifactSet(),
		SourceArtifact:           src,
		DotdFile:                 dotd,
		Reply:                    fakeReply{data: []byte("x.o: pkg/x.cc pkg/unknown.h\n")},
		Resolver:                 mapResolver{},
		SourceLabel:              "//pkg:x",
		SourceFile:               "pkg/x.cc",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pkg/unknown.h")
}

func TestResolveExecPathDropsSystemPrefixedAbsolutePaths(t *testing.T) {
	p, ok := resolveExecPath(fs.NewPath("/usr/include/stdio.h"), "/exec/root", []fs.Path{fs.NewPath("/usr/include")})
	assert.False(t, ok)
	assert.True(t, p.IsEmpty())
}

func TestResolveExecPathStripsExecRoot(t *testing.T) {
	p, ok := resolveExecPath(fs.NewPath("/exec/root/pkg/gen.h"), "/exec/root", nil)
	assert.True(t, ok)
	assert.Equal(t, "pkg/gen.h", p.String())
}

func TestUpdateInputsFromCacheDropsUnresolvable(t *testing.T) {
	known := fs.NewSourceArtifact(fs.NewPath("pkg/x.h"))
	out := UpdateInputsFromCache(mapResolver{"pkg/x.h": known}, map[string]fs.Artifact{}, []fs.Path{
		fs.NewPath("pkg/x.h"),
		fs.NewPath("pkg/gone.h"),
	})
	assert.Equal(t, 1, out.Len())
	assert.True(t, out.Contains(known))
}
