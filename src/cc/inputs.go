package cc

import (
	"github.com/pkg/errors"

	"github.com/please-build/cc-compile-action/src/depset"
	"github.com/please-build/cc-compile-action/src/fs"
)

// UpdateInputsInputs bundles the input-set updater's parameters.
type UpdateInputsInputs struct {
	ExecRoot string

	MandatoryInputs          *fs.ArtifactSet
	OptionalInputs           *fs.ArtifactSet
	CompilationPrerequisites *fs.ArtifactSet
	DeclaredIncludeSrcs      []fs.Artifact
	SourceArtifact           fs.Artifact

	DotdFile fs.DotdFile
	Reply    Reply // non-nil if the executor returned an in-memory dotd payload

	SystemIncludePrefixes []fs.Path

	Resolver        ArtifactResolver
	IncludeResolver IncludeResolver

	SourceLabel string
	SourceFile  string
}

// UpdateInputs parses the dependency set the compiler produced, resolves
// every dependency to an artifact, and returns the rebuilt live input set.
// Any dependency path that can't be resolved is recorded as an undeclared
// inclusion and reported as a single fatal error naming all of them.
func UpdateInputs(in UpdateInputsInputs) (*fs.ArtifactSet, error) {
	deps, err := readDependencySet(in.DotdFile, in.Reply)
	if err != nil {
		return nil, errors.Wrap(err, "cc: error reading .d file")
	}

	live := fs.NewArtifactSet()
	live.Union(in.MandatoryInputs)
	live.Union(in.OptionalInputs)
	live.Union(in.CompilationPrerequisites)

	allowedDerived := allowedDerivedInputs(in.MandatoryInputs, in.DeclaredIncludeSrcs, in.CompilationPrerequisites, in.SourceArtifact)

	var problems IncludeProblems
	for _, p := range deps.Paths() {
		execPath, ok := resolveExecPath(p, in.ExecRoot, in.SystemIncludePrefixes)
		if !ok {
			continue
		}
		if execPath.IsAbsolute() {
			problems.Add(execPath.String())
			continue
		}
		artifact, resolved := allowedDerived[execPath.String()]
		if !resolved && in.Resolver != nil {
			artifact, resolved = in.Resolver.ResolveSourceArtifact(execPath)
		}
		if !resolved {
			problems.Add(execPath.String())
			continue
		}
		live.Add(artifact)
		if in.IncludeResolver != nil {
			live.AddAll(in.IncludeResolver.InputsForIncludedFile(artifact, in.Resolver))
		}
	}
	if err := problems.AssertProblemFree(in.SourceLabel, in.SourceFile); err != nil {
		return nil, err
	}
	return live, nil
}

// resolveExecPath implements the absolute-path policy: a path under one of
// the recognised system include prefixes is dropped entirely (it names a
// toolchain-internal header with no corresponding artifact), a path under
// the exec root is rewritten to an exec path, and anything else absolute is
// rejected outright.
func resolveExecPath(p fs.Path, execRoot string, systemIncludePrefixes []fs.Path) (fs.Path, bool) {
	if !p.IsAbsolute() {
		return p, true
	}
	if fs.StartsWithAny(p, systemIncludePrefixes) {
		return fs.Path{}, false
	}
	root := fs.NewPath(execRoot)
	if p.StartsWith(root) {
		return p.RelativeTo(root), true
	}
	return p, true // recorded by the caller as an undeclared inclusion
}

// ScannedIncludeFiles parses action's dotd file -- preferring an in-memory
// reply if one was returned from the compile -- and returns the raw
// dependency paths the compiler discovered, as strings, without resolving
// them to artifacts or running the declared-inclusion policy against them.
// This is what Executor.GetScannedIncludeFiles reports for observability.
func ScannedIncludeFiles(action *CompileAction, reply Reply) ([]string, error) {
	if action.Dotd == nil {
		return nil, nil
	}
	deps, err := readDependencySet(*action.Dotd, reply)
	if err != nil {
		return nil, errors.Wrap(err, "cc: error reading .d file")
	}
	out := make([]string, 0, deps.Len())
	for _, p := range deps.Paths() {
		out = append(out, p.String())
	}
	return out, nil
}

func readDependencySet(dotd fs.DotdFile, reply Reply) (depset.DependencySet, error) {
	if reply != nil {
		return depset.Parse(reply.Contents())
	}
	if dotd.IsVirtual() {
		return depset.DependencySet{}, errors.New("cc: dotd file is virtual but the executor returned no in-memory reply")
	}
	return depset.ParseFile(dotd.Path().String())
}

// allowedDerivedInputs indexes every derived (i.e. not checked-in source)
// artifact this action is already entitled to use, by exec path, so that a
// dependency naming one of them resolves without needing a full
// ArtifactResolver round trip.
func allowedDerivedInputs(mandatory *fs.ArtifactSet, declaredSrcs []fs.Artifact, prereqs *fs.ArtifactSet, source fs.Artifact) map[string]fs.Artifact {
	m := map[string]fs.Artifact{}
	add := func(a fs.Artifact) {
		if !a.IsSourceArtifact() {
			m[a.ExecPath().String()] = a
		}
	}
	for _, a := range mandatory.Slice() {
		add(a)
	}
	for _, a := range declaredSrcs {
		add(a)
	}
	for _, a := range prereqs.Slice() {
		add(a)
	}
	add(source)
	return m
}

// UpdateInputsFromCache rebuilds a live input set from a list of exec-paths
// previously persisted by a build cache, silently dropping any that no
// longer resolve rather than failing the whole restore. The set this
// produces is deliberately not guaranteed to be a superset of
// mandatoryInputs: the build cache's incrementality check, not this
// function, is responsible for forcing re-execution if a dropped path
// later turns out to matter.
func UpdateInputsFromCache(resolver ArtifactResolver, allowedDerived map[string]fs.Artifact, execPaths []fs.Path) *fs.ArtifactSet {
	out := fs.NewArtifactSet()
	for _, p := range execPaths {
		if artifact, ok := allowedDerived[p.String()]; ok {
			out.Add(artifact)
			continue
		}
		if resolver == nil {
			continue
		}
		if artifact, ok := resolver.ResolveSourceArtifact(p); ok {
			out.Add(artifact)
		}
	}
	return out
}
