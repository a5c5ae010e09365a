package cc

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alessio/shellescape"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/please-build/cc-compile-action/src/fs"
)

// CompileAction models one C/C++ compile step: everything the command line,
// the fingerprint, and the inclusion validator are computed from, plus the
// live input set that grows once a scan has run.
type CompileAction struct {
	OwnerLabel  string
	SourceLabel string
	Features    FeatureSet
	Source      fs.Artifact

	Output   fs.Artifact
	GcnoFile *fs.Artifact
	DwoFile  *fs.Artifact
	Dotd     *fs.DotdFile

	Toolchain Toolchain
	Context   CompilationContext

	Copts       []string
	PluginOpts  []string
	CoptsFilter CoptsFilter

	ExtraSystemIncludePrefixes []fs.Path
	EnableModules              bool
	FDOBuildStamp              *string

	IncludeResolver IncludeResolver
	ActionClassID   uuid.UUID

	mandatoryInputs          *fs.ArtifactSet
	optionalInputs           *fs.ArtifactSet
	compilationPrerequisites *fs.ArtifactSet

	// mu guards the only state that mutates after construction: the live
	// input set and whether it's known yet. Actions are otherwise
	// thread-compatible, not thread-safe -- callers must not share one
	// across concurrent executions.
	mu          sync.Mutex
	liveInputs  *fs.ArtifactSet
	inputsKnown bool
}

// New constructs a CompileAction. mandatoryInputs must already contain
// source; that's an invariant of the caller, not something New can repair,
// so a violation panics rather than silently compiling the wrong thing.
func New(owner, sourceLabel string, source fs.Artifact, mandatoryInputs, optionalInputs *fs.ArtifactSet, output fs.Artifact, toolchain Toolchain, context CompilationContext, actionClassID uuid.UUID) *CompileAction {
	if !mandatoryInputs.Contains(source) {
		panic("cc: source artifact must be a member of mandatoryInputs")
	}
	a := &CompileAction{
		OwnerLabel:               owner,
		SourceLabel:              sourceLabel,
		Source:                   source,
		Output:                   output,
		Toolchain:                toolchain,
		Context:                  context,
		ActionClassID:            actionClassID,
		Features:                 FeatureSet{},
		CoptsFilter:              AllowAllCopts,
		IncludeResolver:          VoidIncludeResolver{},
		mandatoryInputs:          mandatoryInputs,
		optionalInputs:           optionalInputs,
		compilationPrerequisites: artifactSetOf(context.CompilationPrerequisites),
	}
	a.liveInputs = fs.NewArtifactSet()
	a.liveInputs.Union(mandatoryInputs)
	a.liveInputs.Union(optionalInputs)
	a.liveInputs.Union(a.compilationPrerequisites)
	a.inputsKnown = toolchain == nil || !toolchain.ShouldScanIncludes()
	return a
}

func artifactSetOf(as []fs.Artifact) *fs.ArtifactSet {
	s := fs.NewArtifactSet()
	s.AddAll(as)
	return s
}

// InputsKnown reports whether the live input set reflects a completed scan.
func (a *CompileAction) InputsKnown() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inputsKnown
}

// Inputs returns the action's current live input set.
func (a *CompileAction) Inputs() *fs.ArtifactSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveInputs
}

func (a *CompileAction) setInputs(inputs *fs.ArtifactSet, known bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.liveInputs = inputs
	a.inputsKnown = known
}

// SourceIsHeader reports whether the source artifact is a C++ header being
// compiled for header-parsing or header-preprocessing purposes.
func (a *CompileAction) SourceIsHeader() bool {
	return isCppHeader(a.Source.ExecPath().String())
}

func (a *CompileAction) commandLineInputs() CommandLineInputs {
	return CommandLineInputs{
		Source:         a.Source,
		SourceIsHeader: a.SourceIsHeader(),
		SourceLabel:    a.OwnerLabel,
		Context:        a.Context,
		Toolchain:      a.Toolchain,
		Features:       a.Features,
		Copts:          a.Copts,
		PluginOpts:     a.PluginOpts,
		CoptsFilter:    a.CoptsFilter,
		DotdFile:       a.Dotd,
		EnableModules:  a.EnableModules,
		FDOBuildStamp:  a.FDOBuildStamp,
		Output:         a.Output,
	}
}

// Argv returns the compiler invocation for this action.
func (a *CompileAction) Argv() ([]string, error) {
	return Assemble(a.commandLineInputs())
}

// Environment returns the shell environment the compiler should run under.
func (a *CompileAction) Environment() []string {
	return Environment(a.Toolchain)
}

// Outputs returns every artifact this action declares as an output.
func (a *CompileAction) Outputs() []fs.Artifact {
	out := []fs.Artifact{a.Output}
	if a.GcnoFile != nil {
		out = append(out, *a.GcnoFile)
	}
	if a.DwoFile != nil {
		out = append(out, *a.DwoFile)
	}
	if a.Dotd != nil && !a.Dotd.IsVirtual() {
		out = append(out, *a.Dotd.Artifact())
	}
	return out
}

// ComputeKey returns a deterministic fingerprint of everything that affects
// this action's output or its validation verdict without affecting argv:
// the action-class identity, the full command line, and the declared
// inclusion policy. It never touches the live input set, so restoring an
// action from cache and re-validating it against a relaxed input set can't
// retroactively change the key that was used to look the cache entry up.
func (a *CompileAction) ComputeKey() (string, error) {
	argv, err := a.Argv()
	if err != nil {
		return "", err
	}
	h := blake3.New()
	h.Write(a.ActionClassID[:])
	writeStrings(h, argv)
	writePaths(h, a.Context.DeclaredIncludeDirs)
	writePaths(h, a.Context.DeclaredIncludeWarnDirs)
	writePaths(h, sortedExecPaths(a.Context.DeclaredIncludeSrcs))
	writePaths(h, a.ExtraSystemIncludePrefixes)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeStrings(w io.Writer, ss []string) {
	for _, s := range ss {
		io.WriteString(w, s)
		w.Write([]byte{0})
	}
}

func writePaths(w io.Writer, ps []fs.Path) {
	for _, p := range ps {
		io.WriteString(w, p.String())
		w.Write([]byte{0})
	}
}

func sortedExecPaths(as []fs.Artifact) []fs.Path {
	s := fs.NewArtifactSet()
	s.AddAll(as)
	return s.SortedExecPaths()
}

// EstimateResourceConsumptionLocal returns the fixed local resource
// estimate a local executor should use; remote strategies provide their own
// via Executor.EstimateResourceConsumption instead.
func (a *CompileAction) EstimateResourceConsumptionLocal() ResourceSet {
	r := ResourceSet{MemoryMB: 200, CPU: 0.5}
	log.Debug("estimated resources for %s: %s, %.1f core", a.OwnerLabel, humanize.Bytes(uint64(r.MemoryMB)*1024*1024), r.CPU)
	return r
}

// ExecuteContext bundles the collaborators Execute needs beyond the action
// itself: the execution strategy and the boundary interfaces it resolves
// discovered dependencies through.
type ExecuteContext struct {
	Executor          Executor
	Resolver          ArtifactResolver
	MiddlemanExpander fs.MiddlemanExpander
	SubPackages       SubPackageChecker
	EventSink         EventHandler
	ExecRoot          string
}

// Execute runs the action to completion: delegate to the executor, normalize
// coverage-note outputs, rebuild the live input set from the dependency scan,
// and validate the result. Each step only runs if the previous one
// succeeded, and in that order -- a compile that fails is never validated
// against a stale input set left over from a previous attempt.
func (a *CompileAction) Execute(ctx ExecuteContext) error {
	log.Debug("executing compile action for %s -> %s", a.OwnerLabel, a.Output)
	reply, err := ctx.Executor.ExecWithReply(a)
	if err != nil {
		return errors.Wrapf(err, "C++ compilation of rule '%s' failed", a.OwnerLabel)
	}
	if err := a.ensureCoverageNotesExist(); err != nil {
		return err
	}
	if err := a.updateInputs(ctx, reply); err != nil {
		return err
	}
	return a.validate(ctx)
}

// ensureCoverageNotesExist implements the gcno normalization: gcc only
// writes a .gcno file for a non-empty translation unit, but an action's
// declared outputs must exist regardless of the source's contents.
func (a *CompileAction) ensureCoverageNotesExist() error {
	if a.GcnoFile == nil {
		return nil
	}
	p := a.GcnoFile.Path().String()
	if !strings.HasSuffix(p, ".gcno") {
		return nil
	}
	if fs.PathExists(p) {
		return nil
	}
	if err := fs.CreateEmptyFile(p); err != nil {
		return errors.Wrapf(err, "creating coverage notes placeholder %s", p)
	}
	return nil
}

func (a *CompileAction) updateInputs(ctx ExecuteContext, reply Reply) error {
	if a.Toolchain != nil && !a.Toolchain.ShouldScanIncludes() {
		return nil
	}
	if a.Dotd == nil {
		return errors.New("cc: include scanning is enabled but the action has no dotd file configured")
	}
	live, err := UpdateInputs(UpdateInputsInputs{
		ExecRoot:                 ctx.ExecRoot,
		MandatoryInputs:          a.mandatoryInputs,
		OptionalInputs:           a.optionalInputs,
		CompilationPrerequisites: a.compilationPrerequisites,
		DeclaredIncludeSrcs:      a.Context.DeclaredIncludeSrcs,
		SourceArtifact:           a.Source,
		DotdFile:                 *a.Dotd,
		Reply:                    reply,
		SystemIncludePrefixes:    a.systemIncludePrefixes(),
		Resolver:                 ctx.Resolver,
		IncludeResolver:          a.IncludeResolver,
		SourceLabel:              a.OwnerLabel,
		SourceFile:               a.Source.ExecPath().String(),
	})
	if err != nil {
		return err
	}
	a.setInputs(live, true)
	return nil
}

func (a *CompileAction) systemIncludePrefixes() []fs.Path {
	var out []fs.Path
	for _, d := range a.Toolchain.BuiltInIncludeDirectories() {
		if d.IsAbsolute() {
			out = append(out, d)
		}
	}
	return append(out, a.ExtraSystemIncludePrefixes...)
}

func (a *CompileAction) validate(ctx ExecuteContext) error {
	return Validate(ValidateInputs{
		LiveInputs:                 a.Inputs(),
		MandatoryInputs:            a.mandatoryInputs,
		OptionalInputs:             a.optionalInputs,
		CompilationPrerequisites:   a.compilationPrerequisites,
		Context:                    a.Context,
		BuiltInIncludeDirs:         a.Toolchain.BuiltInIncludeDirectories(),
		ExtraSystemIncludePrefixes: a.ExtraSystemIncludePrefixes,
		MiddlemanExpander:          ctx.MiddlemanExpander,
		SubPackages:                ctx.SubPackages,
		InputsKnown:                a.InputsKnown(),
		ScanIncludesEnabled:        a.Toolchain.ShouldScanIncludes(),
		SourceLabel:                a.OwnerLabel,
		SourceFile:                 a.Source.ExecPath().String(),
		EventSink:                  ctx.EventSink,
	})
}

// DescribeKey renders a human-readable dump of the command line, the
// declared include directories and sources, and the extra system include
// prefixes, for build debugging. Declared include warn directories, which
// ComputeKey also folds in, are not listed.
func (a *CompileAction) DescribeKey() (string, error) {
	argv, err := a.Argv()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  Command: %s\n", shellescape.Quote(argv[0]))
	for _, arg := range argv[1:] {
		fmt.Fprintf(&b, "  Argument: %s\n", shellescape.Quote(arg))
	}
	for _, d := range a.Context.DeclaredIncludeDirs {
		fmt.Fprintf(&b, "  Declared include directory: %s\n", shellescape.Quote(d.String()))
	}
	for _, p := range sortedExecPaths(a.Context.DeclaredIncludeSrcs) {
		fmt.Fprintf(&b, "  Declared include source: %s\n", shellescape.Quote(p.String()))
	}
	for _, p := range a.ExtraSystemIncludePrefixes {
		fmt.Fprintf(&b, "  Extra system include prefix: %s\n", shellescape.Quote(p.String()))
	}
	return b.String(), nil
}

// ExtraActionRecord is the observability record a build system can surface
// for this action: the compiler, its full option list, and either the
// scanned inputs (if known) or the declared worst-case set.
type ExtraActionRecord struct {
	Tool              string   `json:"tool"`
	CompilerOption    []string `json:"compiler_option,omitempty"`
	OutputFile        string   `json:"output_file"`
	SourceFile        string   `json:"source_file"`
	SourcesAndHeaders []string `json:"sources_and_headers,omitempty"`
}

// ExtraActionRecord builds the observability record described above.
func (a *CompileAction) ExtraActionRecord() (ExtraActionRecord, error) {
	opts, err := CompilerOptions(a.commandLineInputs())
	if err != nil {
		return ExtraActionRecord{}, err
	}
	rec := ExtraActionRecord{
		Tool:           a.Toolchain.ToolPath(ToolGCC),
		CompilerOption: opts,
		OutputFile:     a.Output.ExecPath().String(),
		SourceFile:     a.Source.ExecPath().String(),
	}
	if a.InputsKnown() {
		for _, in := range a.Inputs().Slice() {
			rec.SourcesAndHeaders = append(rec.SourcesAndHeaders, in.ExecPath().String())
		}
		return rec, nil
	}
	rec.SourcesAndHeaders = append(rec.SourcesAndHeaders, a.Source.ExecPath().String())
	for _, p := range sortedExecPaths(a.Context.DeclaredIncludeSrcs) {
		rec.SourcesAndHeaders = append(rec.SourcesAndHeaders, p.String())
	}
	return rec, nil
}
