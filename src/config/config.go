// Package config loads a C/C++ toolchain configuration from a .plzconfig-
// style gcfg file and exposes it as a cc.Toolchain.
package config

import (
	"regexp"
	"sort"

	"github.com/please-build/gcfg"

	"github.com/please-build/cc-compile-action/src/cc"
	"github.com/please-build/cc-compile-action/src/fs"
)

// Toolchain is a gcfg-decoded C/C++ toolchain configuration. Its section
// layout mirrors the teacher's own .plzconfig sections: one struct field per
// INI key, decoded directly by gcfg with no intermediate parsing step.
type Toolchain struct {
	Compile struct {
		ScanIncludes      bool
		Fission           bool
		CodeCoverage      bool
		BuiltInIncludeDir []string
		CompilerOption    []string
		COption           []string
		CxxOption         []string
		UnfilteredOption  []string
		CWarn             []string
		GccTool           string
		DefaultShellEnv   []string
	}
	// PerFileCopt is keyed by an arbitrary name, e.g. [perfilecopt "legacy"],
	// the same named-subsection idiom used for remotes in a .gitconfig.
	PerFileCopt map[string]*struct {
		LabelRegex    string
		FilenameRegex string
		Option        []string
	}

	builtInIncludeDirs []fs.Path
	perFileCopts       []cc.PerLabelOptions
}

// Load reads and decodes a toolchain configuration from the named gcfg
// file.
func Load(filename string) (*Toolchain, error) {
	t := &Toolchain{}
	if err := gcfg.ReadFileInto(t, filename); err != nil {
		return nil, err
	}
	return t.finalise()
}

// Parse decodes a toolchain configuration from gcfg-formatted bytes, useful
// for tests that don't want to touch disk.
func Parse(data []byte) (*Toolchain, error) {
	t := &Toolchain{}
	if err := gcfg.ReadStringInto(t, string(data)); err != nil {
		return nil, err
	}
	return t.finalise()
}

func (t *Toolchain) finalise() (*Toolchain, error) {
	for _, d := range t.Compile.BuiltInIncludeDir {
		t.builtInIncludeDirs = append(t.builtInIncludeDirs, fs.NewPath(d))
	}
	names := make([]string, 0, len(t.PerFileCopt))
	for name := range t.PerFileCopt {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := t.PerFileCopt[name]
		opts := cc.PerLabelOptions{Options: p.Option}
		if p.LabelRegex != "" {
			re, err := regexp.Compile(p.LabelRegex)
			if err != nil {
				return nil, err
			}
			opts.LabelFilter = re
		}
		if p.FilenameRegex != "" {
			re, err := regexp.Compile(p.FilenameRegex)
			if err != nil {
				return nil, err
			}
			opts.FilenameFilter = re
		}
		t.perFileCopts = append(t.perFileCopts, opts)
	}
	return t, nil
}

// ShouldScanIncludes implements cc.Toolchain.
func (t *Toolchain) ShouldScanIncludes() bool { return t.Compile.ScanIncludes }

// UseFission implements cc.Toolchain.
func (t *Toolchain) UseFission() bool { return t.Compile.Fission }

// IsCodeCoverageEnabled implements cc.Toolchain.
func (t *Toolchain) IsCodeCoverageEnabled() bool { return t.Compile.CodeCoverage }

// BuiltInIncludeDirectories implements cc.Toolchain.
func (t *Toolchain) BuiltInIncludeDirectories() []fs.Path { return t.builtInIncludeDirs }

// CompilerOptions implements cc.Toolchain.
func (t *Toolchain) CompilerOptions(cc.FeatureSet) []string { return t.Compile.CompilerOption }

// COptions implements cc.Toolchain.
func (t *Toolchain) COptions() []string { return t.Compile.COption }

// CxxOptions implements cc.Toolchain.
func (t *Toolchain) CxxOptions(cc.FeatureSet) []string { return t.Compile.CxxOption }

// UnfilteredCompilerOptions implements cc.Toolchain.
func (t *Toolchain) UnfilteredCompilerOptions(cc.FeatureSet) []string {
	return t.Compile.UnfilteredOption
}

// CWarns implements cc.Toolchain.
func (t *Toolchain) CWarns() []string { return t.Compile.CWarn }

// PerFileCopts implements cc.Toolchain.
func (t *Toolchain) PerFileCopts() []cc.PerLabelOptions { return t.perFileCopts }

// ToolPath implements cc.Toolchain.
func (t *Toolchain) ToolPath(cc.Tool) string { return t.Compile.GccTool }

// DefaultShellEnvironment implements cc.Toolchain.
func (t *Toolchain) DefaultShellEnvironment() []string { return t.Compile.DefaultShellEnv }
