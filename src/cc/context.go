package cc

import "github.com/please-build/cc-compile-action/src/fs"

// PregreppedHeader pairs a header artifact with a sidecar artifact holding
// the pre-extracted list of #include lines found in it, letting an include
// scanner avoid reading the (possibly large, possibly generated) header
// itself.
type PregreppedHeader struct {
	Header      fs.Artifact
	IncludeList fs.Artifact
}

// ModuleMap describes a Clang module map attached to a compilation: its
// logical module name, and the artifact holding the .modulemap file.
type ModuleMap struct {
	Name     string
	Artifact fs.Artifact
}

// CompilationContext is the immutable, shareable bundle of include-path and
// declared-inclusion state a compile action is built from. It holds no
// mutable state of its own; a single CompilationContext is typically reused
// across every translation unit of a rule.
type CompilationContext struct {
	QuoteIncludeDirs  []fs.Path
	IncludeDirs       []fs.Path
	SystemIncludeDirs []fs.Path

	// DeclaredIncludeDirs may contain an entry whose final segment is the
	// literal "**", meaning "this directory and everything below it".
	DeclaredIncludeDirs     []fs.Path
	DeclaredIncludeWarnDirs []fs.Path
	DeclaredIncludeSrcs     []fs.Artifact

	PregreppedHeaders []PregreppedHeader

	CompilationPrerequisites []fs.Artifact

	Defines []string

	ModuleMap *ModuleMap
}

// LegalScannerFiles returns the set of generated headers an include scanner
// is allowed to read even though it did not itself produce them: derived
// artifacts named in DeclaredIncludeSrcs, and the pregrepped sidecar for
// each PregreppedHeader. A nil map value means "no pregrepped sidecar
// available, scan the header directly".
func (c CompilationContext) LegalScannerFiles() map[string]*fs.Artifact {
	out := map[string]*fs.Artifact{}
	for _, a := range c.DeclaredIncludeSrcs {
		if !a.IsSourceArtifact() {
			out[a.ExecPath().String()] = nil
		}
	}
	for _, p := range c.PregreppedHeaders {
		list := p.IncludeList
		out[p.Header.ExecPath().String()] = &list
	}
	return out
}
