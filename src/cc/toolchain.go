package cc

import (
	"regexp"

	"github.com/please-build/cc-compile-action/src/fs"
)

// FeatureSet is the set of enabled build features visible to the command
// line assembler, e.g. "parse_headers" or "preprocess_headers".
type FeatureSet map[string]bool

// NewFeatureSet builds a FeatureSet from the given feature names.
func NewFeatureSet(features ...string) FeatureSet {
	s := make(FeatureSet, len(features))
	for _, f := range features {
		s[f] = true
	}
	return s
}

// Has reports whether the named feature is enabled.
func (f FeatureSet) Has(name string) bool {
	return f[name]
}

// Tool names one of the binaries a Toolchain knows the path to.
type Tool int

// The tools a Toolchain must be able to locate.
const (
	ToolGCC Tool = iota
	ToolAR
	ToolLd
	ToolStrip
)

// PerLabelOptions is one entry of a toolchain's per-file copts: extra
// compiler options that apply only to sources matching a label or filename
// pattern, layered in after the rule's own copts.
type PerLabelOptions struct {
	LabelFilter    *regexp.Regexp
	FilenameFilter *regexp.Regexp
	Options        []string
}

// IsIncluded reports whether this entry applies to a source compiled under
// the given owning label with the given base filename.
func (p PerLabelOptions) IsIncluded(label, filename string) bool {
	if p.LabelFilter != nil && p.LabelFilter.MatchString(label) {
		return true
	}
	if p.FilenameFilter != nil && p.FilenameFilter.MatchString(filename) {
		return true
	}
	return false
}

// Toolchain is everything the command-line assembler and the action's
// execution semantics need from a configured C/C++ toolchain. Concrete
// implementations live outside this package (see src/config); cc only
// depends on the interface.
type Toolchain interface {
	ShouldScanIncludes() bool
	UseFission() bool
	IsCodeCoverageEnabled() bool
	BuiltInIncludeDirectories() []fs.Path
	CompilerOptions(features FeatureSet) []string
	COptions() []string
	CxxOptions(features FeatureSet) []string
	UnfilteredCompilerOptions(features FeatureSet) []string
	CWarns() []string
	PerFileCopts() []PerLabelOptions
	ToolPath(tool Tool) string
	DefaultShellEnvironment() []string
}
