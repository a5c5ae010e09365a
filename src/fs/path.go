package fs

import (
	"path"
	"strings"
)

// Path is a hierarchical, slash-separated path that may be absolute or
// relative. Two Paths are equal iff their cleaned string forms are equal;
// there is no notion of case-insensitivity or symlink resolution here, this
// is purely a syntactic model.
type Path struct {
	clean string
}

// NewPath constructs a Path from a slash-separated string, normalising away
// redundant separators and "." segments (but preserving leading "/").
func NewPath(p string) Path {
	if p == "" {
		return Path{}
	}
	return Path{clean: path.Clean(p)}
}

// String returns the path's normalised string form.
func (p Path) String() string {
	return p.clean
}

// IsEmpty returns true for the zero Path (equivalent to ".").
func (p Path) IsEmpty() bool {
	return p.clean == "" || p.clean == "."
}

// IsAbsolute returns true if the path begins with a slash.
func (p Path) IsAbsolute() bool {
	return strings.HasPrefix(p.clean, "/")
}

// segments returns the path's components, ignoring any leading slash.
func (p Path) segments() []string {
	if p.IsEmpty() {
		return nil
	}
	trimmed := strings.TrimPrefix(p.clean, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// SegmentCount returns the number of path components.
func (p Path) SegmentCount() int {
	return len(p.segments())
}

// BaseName returns the final path component.
func (p Path) BaseName() string {
	if p.IsEmpty() {
		return p.clean
	}
	return path.Base(p.clean)
}

// Parent returns the path with its final component removed. The parent of a
// single-segment relative path, or of the root, is the empty path.
func (p Path) Parent() Path {
	segs := p.segments()
	if len(segs) <= 1 {
		if p.IsAbsolute() && len(segs) == 1 {
			return Path{clean: "/"}
		}
		return Path{}
	}
	rest := strings.Join(segs[:len(segs)-1], "/")
	if p.IsAbsolute() {
		return Path{clean: "/" + rest}
	}
	return Path{clean: rest}
}

// StartsWith returns true if this path begins with the given prefix, with
// the match aligned on path segments (so "pkg/abc" does not start with
// "pkg/a").
func (p Path) StartsWith(prefix Path) bool {
	if prefix.IsEmpty() {
		return true
	}
	if p.IsAbsolute() != prefix.IsAbsolute() {
		return false
	}
	ps, qs := p.segments(), prefix.segments()
	if len(qs) > len(ps) {
		return false
	}
	for i, s := range qs {
		if ps[i] != s {
			return false
		}
	}
	return true
}

// RelativeTo strips 'base' from the front of this path. The caller must have
// already established (e.g. via StartsWith) that this path is in fact under
// base; RelativeTo panics otherwise, since a silent wrong answer here would
// corrupt the exec-path bookkeeping callers rely on.
func (p Path) RelativeTo(base Path) Path {
	if !p.StartsWith(base) {
		panic("fs: " + p.clean + " is not relative to " + base.clean)
	}
	rest := p.segments()[base.SegmentCount():]
	return Path{clean: strings.Join(rest, "/")}
}

// Join appends a slash-separated element to this path.
func (p Path) Join(elem string) Path {
	return NewPath(path.Join(p.clean, elem))
}

// Equal reports structural equality between two paths.
func (p Path) Equal(o Path) bool {
	return p.clean == o.clean
}

// Less orders paths lexicographically by their string form; used to produce
// the stable sort order the fingerprint requires (§4.7).
func (p Path) Less(o Path) bool {
	return p.clean < o.clean
}

// StartsWithAny returns true iff some prefix is a segment-aligned path-prefix
// of p.
func StartsWithAny(p Path, prefixes []Path) bool {
	for _, prefix := range prefixes {
		if p.StartsWith(prefix) {
			return true
		}
	}
	return false
}
