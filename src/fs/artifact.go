package fs

import "sort"

// RootKind distinguishes the checked-in source tree from a generated-output
// tree.
type RootKind int

// The two kinds of root an Artifact can live under.
const (
	SourceRootKind RootKind = iota
	DerivedRootKind
)

// Root identifies one of the directory roots artifacts are resolved under.
// A build typically has one source root and one or more derived roots (a
// general output tree, plus possibly a generated "include" link-tree that
// the declared-inclusion policy treats specially).
type Root struct {
	Kind RootKind
	// Exec is this root's own location relative to the execution root, e.g.
	// "plz-out/gen" or "plz-out/gen/_includes". Its base name is what the
	// derived-input rule in the inclusion validator inspects.
	Exec Path
}

// IsSource returns true if this is the source root.
func (r Root) IsSource() bool {
	return r.Kind == SourceRootKind
}

// BaseName returns the final component of the root's own exec path.
func (r Root) BaseName() string {
	return r.Exec.BaseName()
}

// SourceRoot is the single root for checked-in source files.
var SourceRoot = Root{Kind: SourceRootKind}

type artifactKind int

const (
	normalArtifactKind artifactKind = iota
	middlemanArtifactKind
)

// Artifact is a file the build tracks: either a source artifact living under
// SourceRoot, or a derived artifact produced by some other action. Two
// artifacts with equal exec paths are equal, regardless of how they were
// constructed.
type Artifact struct {
	root     Root
	relPath  Path
	kind     artifactKind
}

// NewSourceArtifact returns a source artifact at the given root-relative
// (here, repo-relative) path.
func NewSourceArtifact(relPath Path) Artifact {
	return Artifact{root: SourceRoot, relPath: relPath}
}

// NewDerivedArtifact returns a derived artifact produced under the given
// root, at the given root-relative path.
func NewDerivedArtifact(root Root, relPath Path) Artifact {
	return Artifact{root: root, relPath: relPath}
}

// NewMiddlemanArtifact returns a middleman (aggregator) artifact: a
// derived artifact that stands in for a set of other artifacts, expanded on
// demand by a MiddlemanExpander.
func NewMiddlemanArtifact(root Root, relPath Path) Artifact {
	return Artifact{root: root, relPath: relPath, kind: middlemanArtifactKind}
}

// IsSourceArtifact returns true if this artifact lives under the source root.
func (a Artifact) IsSourceArtifact() bool {
	return a.root.IsSource()
}

// IsMiddlemanArtifact returns true if this artifact is an aggregator.
func (a Artifact) IsMiddlemanArtifact() bool {
	return a.kind == middlemanArtifactKind
}

// Root returns the root this artifact is resolved under.
func (a Artifact) Root() Root {
	return a.root
}

// RootRelativePath returns the artifact's path relative to its root.
func (a Artifact) RootRelativePath() Path {
	return a.relPath
}

// ExecPath returns the artifact's path relative to the execution root: for
// a source artifact this is just its root-relative path; for a derived
// artifact it is prefixed with the root's own exec path.
func (a Artifact) ExecPath() Path {
	if a.IsSourceArtifact() {
		return a.relPath
	}
	if a.root.Exec.IsEmpty() {
		return a.relPath
	}
	return a.root.Exec.Join(a.relPath.String())
}

// Path is an alias for ExecPath: in this model the on-disk layout under the
// execution root mirrors the exec-path namespace exactly.
func (a Artifact) Path() Path {
	return a.ExecPath()
}

// Equal implements the "equal exec-path implies equal artifact" invariant.
func (a Artifact) Equal(o Artifact) bool {
	return a.ExecPath().Equal(o.ExecPath())
}

// String returns the artifact's exec path, for diagnostics.
func (a Artifact) String() string {
	return a.ExecPath().String()
}

// MiddlemanExpander expands a middleman artifact into the concrete artifacts
// it aggregates. Implementations are supplied by the execution context; the
// fs package never owns the expansion itself.
type MiddlemanExpander interface {
	Expand(middleman Artifact, out *ArtifactSet)
}

// ExpandMiddleman adds the expansion of 'artifact' into 'out' if it is a
// middleman artifact, and is a no-op for ordinary artifacts. Expansion is
// non-recursive: artifacts produced by the expansion are not themselves
// re-expanded even if they happen to be middlemen.
func ExpandMiddleman(artifact Artifact, expander MiddlemanExpander, out *ArtifactSet) {
	if artifact.IsMiddlemanArtifact() && expander != nil {
		expander.Expand(artifact, out)
	}
}

// ArtifactSet is an insertion-ordered set of artifacts, deduplicated by exec
// path.
type ArtifactSet struct {
	order []Artifact
	index map[string]int
}

// NewArtifactSet returns a new, empty ArtifactSet.
func NewArtifactSet() *ArtifactSet {
	return &ArtifactSet{index: map[string]int{}}
}

// Add inserts an artifact if its exec path isn't already present.
func (s *ArtifactSet) Add(a Artifact) {
	key := a.ExecPath().String()
	if _, ok := s.index[key]; ok {
		return
	}
	s.index[key] = len(s.order)
	s.order = append(s.order, a)
}

// AddAll inserts every artifact in 'as'.
func (s *ArtifactSet) AddAll(as []Artifact) {
	for _, a := range as {
		s.Add(a)
	}
}

// Union inserts every artifact of 'other' into this set.
func (s *ArtifactSet) Union(other *ArtifactSet) {
	if other == nil {
		return
	}
	s.AddAll(other.order)
}

// Contains returns true if an artifact with the same exec path is present.
func (s *ArtifactSet) Contains(a Artifact) bool {
	_, ok := s.index[a.ExecPath().String()]
	return ok
}

// Slice returns the set's contents in insertion order. The caller must not
// mutate the returned slice.
func (s *ArtifactSet) Slice() []Artifact {
	return s.order
}

// Len returns the number of artifacts in the set.
func (s *ArtifactSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// SortedExecPaths returns the set's exec paths sorted ascending, used where
// the fingerprint needs a stable order (§4.7).
func (s *ArtifactSet) SortedExecPaths() []Path {
	paths := make([]Path, 0, s.Len())
	for _, a := range s.order {
		paths = append(paths, a.ExecPath())
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Less(paths[j]) })
	return paths
}
