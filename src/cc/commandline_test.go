package cc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-build/cc-compile-action/src/fs"
)

type fakeToolchain struct {
	scanIncludes  bool
	fission       bool
	coverage      bool
	builtInDirs   []fs.Path
	compilerOpts  []string
	cOpts         []string
	cxxOpts       []string
	unfiltered    []string
	warns         []string
	perFileCopts  []PerLabelOptions
	gccPath       string
	shellEnv      []string
}

func (f *fakeToolchain) ShouldScanIncludes() bool                          { return f.scanIncludes }
func (f *fakeToolchain) UseFission() bool                                  { return f.fission }
func (f *fakeToolchain) IsCodeCoverageEnabled() bool                       { return f.coverage }
func (f *fakeToolchain) BuiltInIncludeDirectories() []fs.Path              { return f.builtInDirs }
func (f *fakeToolchain) CompilerOptions(FeatureSet) []string               { return f.compilerOpts }
func (f *fakeToolchain) COptions() []string                                { return f.cOpts }
func (f *fakeToolchain) CxxOptions(FeatureSet) []string                    { return f.cxxOpts }
func (f *fakeToolchain) UnfilteredCompilerOptions(FeatureSet) []string     { return f.unfiltered }
func (f *fakeToolchain) CWarns() []string                                  { return f.warns }
func (f *fakeToolchain) PerFileCopts() []PerLabelOptions                   { return f.perFileCopts }
func (f *fakeToolchain) ToolPath(Tool) string                              { return f.gccPath }
func (f *fakeToolchain) DefaultShellEnvironment() []string                 { return f.shellEnv }

func basicToolchain() *fakeToolchain {
	return &fakeToolchain{gccPath: "/usr/bin/gcc", scanIncludes: true}
}

func TestAssembleBasicOrdering(t *testing.T) {
	tc := basicToolchain()
	tc.compilerOpts = []string{"-std=c++17"}
	tc.warns = []string{"all"}

	in := CommandLineInputs{
		Source: fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")),
		Output: fs.NewDerivedArtifact(fs.Root{Kind: fs.DerivedRootKind, Exec: fs.NewPath("plz-out/gen")}, fs.NewPath("pkg/x.o")),
		Context: CompilationContext{
			IncludeDirs: []fs.Path{fs.NewPath("pkg/include")},
			Defines:     []string{"FOO=1"},
		},
		Toolchain: tc,
		Copts:     []string{"-fno-exceptions"},
	}
	argv, err := Assemble(in)
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/gcc", argv[0])
	assert.Contains(t, argv, "-Ipkg/include")
	assert.Contains(t, argv, "-std=c++17")
	assert.Contains(t, argv, "-fno-exceptions")
	assert.Contains(t, argv, "-Wall")
	assert.Contains(t, argv, "-DFOO=1")
	assert.Contains(t, argv, "-frandom-seed=plz-out/gen/pkg/x.o")
	assert.Equal(t, "-c", argv[len(argv)-4])
	assert.Equal(t, "pkg/x.cc", argv[len(argv)-3])
	assert.Equal(t, "-o", argv[len(argv)-2])
	assert.Equal(t, "plz-out/gen/pkg/x.o", argv[len(argv)-1])
}

func TestAssembleHeaderWithoutFeatureErrors(t *testing.T) {
	tc := basicToolchain()
	in := CommandLineInputs{
		Source:         fs.NewSourceArtifact(fs.NewPath("pkg/x.h")),
		SourceIsHeader: true,
		Output:         fs.NewSourceArtifact(fs.NewPath("pkg/x.h.o")),
		Toolchain:      tc,
	}
	_, err := Assemble(in)
	assert.Error(t, err)
}

func TestAssembleHeaderWithParseHeadersFeature(t *testing.T) {
	tc := basicToolchain()
	in := CommandLineInputs{
		Source:         fs.NewSourceArtifact(fs.NewPath("pkg/x.h")),
		SourceIsHeader: true,
		Features:       NewFeatureSet("parse_headers"),
		Output:         fs.NewSourceArtifact(fs.NewPath("pkg/x.h.o")),
		Toolchain:      tc,
	}
	argv, err := Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, argv, "c++-header")
}

func TestAssembleCoptsFilterAppliesOnlyToToolchainOptions(t *testing.T) {
	tc := basicToolchain()
	tc.compilerOpts = []string{"-Werror", "-std=c++17"}
	in := CommandLineInputs{
		Source:      fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")),
		Output:      fs.NewSourceArtifact(fs.NewPath("pkg/x.o")),
		Toolchain:   tc,
		Copts:       []string{"-Werror"},
		CoptsFilter: func(s string) bool { return s != "-Werror" },
	}
	argv, err := Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, argv, "-std=c++17")
	count := 0
	for _, a := range argv {
		if a == "-Werror" {
			count++
		}
	}
	assert.Equal(t, 1, count, "explicit copts are never filtered")
}

func TestAssembleDotdFlags(t *testing.T) {
	tc := basicToolchain()
	dotd := fs.NewDotdArtifact(fs.NewSourceArtifact(fs.NewPath("pkg/x.d")))
	in := CommandLineInputs{
		Source:    fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")),
		Output:    fs.NewSourceArtifact(fs.NewPath("pkg/x.o")),
		Toolchain: tc,
		DotdFile:  &dotd,
	}
	argv, err := Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, argv, "-MD")
	assert.Contains(t, argv, "pkg/x.d")
}

func TestAssembleFissionFlag(t *testing.T) {
	tc := basicToolchain()
	tc.fission = true
	in := CommandLineInputs{
		Source:    fs.NewSourceArtifact(fs.NewPath("pkg/x.cc")),
		Output:    fs.NewSourceArtifact(fs.NewPath("pkg/x.o")),
		Toolchain: tc,
	}
	argv, err := Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, argv, "-gsplit-dwarf")
}

func TestAssembleCSourceGetsCOptionsNotCxx(t *testing.T) {
	tc := basicToolchain()
	tc.cOpts = []string{"-std=c11"}
	tc.cxxOpts = []string{"-std=c++17"}
	in := CommandLineInputs{
		Source:    fs.NewSourceArtifact(fs.NewPath("pkg/x.c")),
		Output:    fs.NewSourceArtifact(fs.NewPath("pkg/x.o")),
		Toolchain: tc,
	}
	argv, err := Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, argv, "-std=c11")
	assert.NotContains(t, argv, "-std=c++17")
}

func TestEnvironmentAddsHermeticPWDUnderCoverage(t *testing.T) {
	tc := basicToolchain()
	tc.shellEnv = []string{"PATH=/usr/bin"}
	tc.coverage = true
	env := Environment(tc)
	assert.Contains(t, env, "PWD=/proc/self/cwd")
}
