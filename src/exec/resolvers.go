package exec

import (
	"path/filepath"

	"github.com/please-build/cc-compile-action/src/fs"
)

// DiskArtifactResolver resolves an exec path to a source artifact iff a
// file actually exists at that path under ExecRoot. This is what makes a
// discovered include of a file that was never checked in fail resolution,
// rather than silently becoming a phantom artifact the validator can't
// reason about.
type DiskArtifactResolver struct {
	ExecRoot string
}

// ResolveSourceArtifact implements cc.ArtifactResolver.
func (r DiskArtifactResolver) ResolveSourceArtifact(execPath fs.Path) (fs.Artifact, bool) {
	if !fs.PathExists(filepath.Join(r.ExecRoot, execPath.String())) {
		return fs.Artifact{}, false
	}
	return fs.NewSourceArtifact(execPath), true
}

// MapArtifactResolver resolves exec paths against a fixed, pre-enumerated
// map of known artifacts. Useful for tests and for backends that already
// know the exact set of files a compile is allowed to discover.
type MapArtifactResolver struct {
	artifacts map[string]fs.Artifact
}

// NewMapArtifactResolver builds a MapArtifactResolver from a list of
// artifacts, indexed by exec path.
func NewMapArtifactResolver(known []fs.Artifact) *MapArtifactResolver {
	m := make(map[string]fs.Artifact, len(known))
	for _, a := range known {
		m[a.ExecPath().String()] = a
	}
	return &MapArtifactResolver{artifacts: m}
}

// ResolveSourceArtifact implements cc.ArtifactResolver.
func (r *MapArtifactResolver) ResolveSourceArtifact(execPath fs.Path) (fs.Artifact, bool) {
	a, ok := r.artifacts[execPath.String()]
	return a, ok
}

// StaticMiddlemanExpander expands middleman artifacts using a fixed map of
// exec-path -> expansion, computed ahead of time by whatever assembled the
// action's mandatory inputs.
type StaticMiddlemanExpander struct {
	expansions map[string][]fs.Artifact
}

// NewStaticMiddlemanExpander builds a StaticMiddlemanExpander from a map of
// middleman exec path to its expansion.
func NewStaticMiddlemanExpander(expansions map[string][]fs.Artifact) *StaticMiddlemanExpander {
	return &StaticMiddlemanExpander{expansions: expansions}
}

// Expand implements fs.MiddlemanExpander.
func (e *StaticMiddlemanExpander) Expand(middleman fs.Artifact, out *fs.ArtifactSet) {
	out.AddAll(e.expansions[middleman.ExecPath().String()])
}

// FileSystemSubPackages answers sub-package boundary queries by checking
// for a marker file (e.g. "BUILD") on disk under ExecRoot.
type FileSystemSubPackages struct {
	ExecRoot       string
	MarkerFileName string // defaults to "BUILD"
}

// IsPackageBoundary implements cc.SubPackageChecker.
func (f FileSystemSubPackages) IsPackageBoundary(dir fs.Path) bool {
	name := f.MarkerFileName
	if name == "" {
		name = "BUILD"
	}
	return fs.PathExists(filepath.Join(f.ExecRoot, dir.String(), name))
}
