package cc

import (
	"fmt"

	"github.com/please-build/cc-compile-action/src/fs"
)

// FDOStampMacro is the preprocessor macro stamped with the active FDO build
// type, e.g. "-DBUILD_FDO_TYPE=\"instrument\"".
const FDOStampMacro = "BUILD_FDO_TYPE"

// CoptsFilter decides whether a single toolchain-supplied compiler option
// survives filtering. It is never applied to the rule's own explicit copts:
// user intent always wins there.
type CoptsFilter func(string) bool

// AllowAllCopts is the identity filter.
func AllowAllCopts(string) bool { return true }

// CommandLineInputs bundles everything Assemble is a pure function of.
type CommandLineInputs struct {
	Source         fs.Artifact
	SourceIsHeader bool
	SourceLabel    string

	Context   CompilationContext
	Toolchain Toolchain
	Features  FeatureSet

	Copts       []string
	PluginOpts  []string
	CoptsFilter CoptsFilter

	DotdFile      *fs.DotdFile
	EnableModules bool

	FDOBuildStamp *string

	Output fs.Artifact
}

// Assemble builds the full argv for a compile, per the 21-step ordering:
// compiler path, then the options CompilerOptions returns, then -c <source>
// -o <output>.
func Assemble(in CommandLineInputs) ([]string, error) {
	opts, err := CompilerOptions(in)
	if err != nil {
		return nil, err
	}
	argv := make([]string, 0, len(opts)+4)
	argv = append(argv, in.Toolchain.ToolPath(ToolGCC))
	argv = append(argv, opts...)
	argv = append(argv, "-c", in.Source.ExecPath().String())
	argv = append(argv, "-o", in.Output.ExecPath().String())
	return argv, nil
}

// CompilerOptions returns just the option portion of the command line
// (everything between the compiler path and "-c"), which is also what gets
// reported to an extra-action consumer.
func CompilerOptions(in CommandLineInputs) ([]string, error) {
	filter := in.CoptsFilter
	if filter == nil {
		filter = AllowAllCopts
	}
	var out []string
	addFiltered := func(opts []string) {
		for _, o := range opts {
			if filter(o) {
				out = append(out, o)
			}
		}
	}

	if in.SourceIsHeader {
		switch {
		case in.Features.Has("parse_headers"):
			out = append(out, "-x", "c++-header")
		case in.Features.Has("preprocess_headers"):
			out = append(out, "-E", "-x", "c++")
		default:
			return nil, fmt.Errorf("cc: header source %s requires the parse_headers or preprocess_headers feature", in.Source)
		}
	}

	for _, d := range in.Context.QuoteIncludeDirs {
		out = append(out, "-iquote", d.String())
	}
	for _, d := range in.Context.IncludeDirs {
		out = append(out, "-I"+d.String())
	}
	for _, d := range in.Context.SystemIncludeDirs {
		out = append(out, "-isystem", d.String())
	}

	out = append(out, in.PluginOpts...)

	addFiltered(in.Toolchain.CompilerOptions(in.Features))

	if in.Toolchain.IsCodeCoverageEnabled() {
		addFiltered([]string{"-fprofile-arcs", "-ftest-coverage"})
	}

	name := in.Source.ExecPath().String()
	if isCSource(name) {
		addFiltered(in.Toolchain.COptions())
	}
	if isCppSource(name) || isCppHeader(name) {
		addFiltered(in.Toolchain.CxxOptions(in.Features))
	}

	out = append(out, in.Copts...)

	for _, w := range in.Toolchain.CWarns() {
		out = append(out, "-W"+w)
	}
	for _, d := range in.Context.Defines {
		out = append(out, "-D"+d)
	}

	if in.FDOBuildStamp != nil {
		out = append(out, fmt.Sprintf("-D%s=%q", FDOStampMacro, *in.FDOBuildStamp))
	}

	out = append(out, in.Toolchain.UnfilteredCompilerOptions(in.Features)...)

	out = append(out, "-frandom-seed="+in.Output.ExecPath().String())

	for _, p := range in.Toolchain.PerFileCopts() {
		if p.IsIncluded(in.SourceLabel, in.Source.ExecPath().BaseName()) {
			out = append(out, p.Options...)
		}
	}

	if in.DotdFile != nil {
		out = append(out, "-MD", "-MF", in.DotdFile.SafeExecPath().String())
	}

	if in.Context.ModuleMap != nil && in.EnableModules {
		out = append(out,
			"-Xclang-only=-fmodule-maps",
			"-Xclang-only=-fmodules-strict-decluse",
			"-Xclang-only=-fmodule-name="+in.Context.ModuleMap.Name,
			"-Xclang-only=-fmodule-map-file="+in.Context.ModuleMap.Artifact.ExecPath().String(),
		)
	}

	outName := in.Output.ExecPath().String()
	if isAssemblerOutput(outName) {
		out = append(out, "-S")
	} else if isPreprocessedOutput(outName) {
		out = append(out, "-E")
	}

	if in.Toolchain.UseFission() {
		out = append(out, "-gsplit-dwarf")
	}

	return out, nil
}

// Environment returns the shell environment the compiler should run under:
// the toolchain's default environment, plus a hermetic PWD override when
// coverage instrumentation is enabled (gcov otherwise embeds the real
// absolute build directory into the .gcno file).
func Environment(toolchain Toolchain) []string {
	env := append([]string{}, toolchain.DefaultShellEnvironment()...)
	if toolchain.IsCodeCoverageEnabled() {
		env = append(env, "PWD=/proc/self/cwd")
	}
	return env
}
