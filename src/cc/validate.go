package cc

import (
	"sync"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/please-build/cc-compile-action/src/fs"
)

var log = logging.MustGetLogger("cc")

// validationDebugMu serializes the optional validation-debug log block
// below so concurrent actions can't interleave their dumps; it's the one
// piece of process-wide state the package holds, everything else being
// either immutable or guarded per-action. validationDebugEnabled gates the
// block off by default -- it's a diagnostic aid, not part of the contract.
var (
	validationDebugMu      sync.Mutex
	validationDebugEnabled bool
)

// SetValidationDebug turns the validation-debug log block on or off for
// every subsequent call to Validate in this process.
func SetValidationDebug(enabled bool) {
	validationDebugMu.Lock()
	defer validationDebugMu.Unlock()
	validationDebugEnabled = enabled
}

func logValidationDebug(sourceLabel, sourceFile string, warnings, errs IncludeProblems) {
	validationDebugMu.Lock()
	defer validationDebugMu.Unlock()
	if !validationDebugEnabled {
		return
	}
	log.Debug("validated inclusions for %s (%s): %d warning(s), %d violation(s)", sourceLabel, sourceFile, len(warnings.Paths()), len(errs.Paths()))
	if warnings.HasProblems() {
		log.Warning(warnings.Message(sourceLabel, sourceFile))
	}
}

// ValidateInputs bundles the inclusion validator's parameters.
type ValidateInputs struct {
	LiveInputs               *fs.ArtifactSet
	MandatoryInputs          *fs.ArtifactSet
	OptionalInputs           *fs.ArtifactSet
	CompilationPrerequisites *fs.ArtifactSet

	Context                    CompilationContext
	BuiltInIncludeDirs         []fs.Path
	ExtraSystemIncludePrefixes []fs.Path

	MiddlemanExpander fs.MiddlemanExpander
	SubPackages       SubPackageChecker

	InputsKnown         bool
	ScanIncludesEnabled bool

	SourceLabel string
	SourceFile  string

	EventSink EventHandler
}

// Validate checks every live input against the declared-inclusion policy
// and returns a fatal error naming every violation it finds. It is a no-op
// when include scanning is disabled, or when the live input set hasn't been
// populated by a scan yet.
func Validate(in ValidateInputs) error {
	if !in.ScanIncludesEnabled || !in.InputsKnown {
		return nil
	}

	allowed := fs.NewArtifactSet()
	for _, a := range in.MandatoryInputs.Slice() {
		fs.ExpandMiddleman(a, in.MiddlemanExpander, allowed)
		allowed.Add(a)
	}
	allowed.Union(in.OptionalInputs)

	var ignoreDirs []fs.Path
	ignoreDirs = append(ignoreDirs, in.BuiltInIncludeDirs...)
	ignoreDirs = append(ignoreDirs, in.ExtraSystemIncludePrefixes...)
	ignoreDirs = append(ignoreDirs, in.Context.SystemIncludeDirs...)

	var errs, warnings IncludeProblems
	for _, input := range in.LiveInputs.Slice() {
		if in.CompilationPrerequisites.Contains(input) || allowed.Contains(input) {
			continue
		}
		if fs.StartsWithAny(input.ExecPath(), ignoreDirs) {
			continue
		}
		if isDeclaredIn(input, in.Context.DeclaredIncludeDirs, in.Context.DeclaredIncludeSrcs, in.SubPackages) {
			continue
		}
		if isDeclaredIn(input, in.Context.DeclaredIncludeWarnDirs, nil, in.SubPackages) {
			warnings.Add(input.ExecPath().String())
			continue
		}
		errs.Add(input.ExecPath().String())
	}

	logValidationDebug(in.SourceLabel, in.SourceFile, warnings, errs)

	if warnings.HasProblems() && in.EventSink != nil {
		in.EventSink.Handle(EventWarning, in.SourceLabel, warnings.Message(in.SourceLabel, in.SourceFile))
	}
	return errs.AssertProblemFree(in.SourceLabel, in.SourceFile)
}

// isDeclaredIn implements the declared-inclusion cascade: exact source
// match, then directory containment (including a trailing "**" wildcard),
// then a walk up the containing directories that bails out the moment it
// crosses into another package.
func isDeclaredIn(input fs.Artifact, dirs []fs.Path, srcs []fs.Artifact, subPackages SubPackageChecker) bool {
	for _, s := range srcs {
		if s.Equal(input) {
			return true
		}
	}
	if !input.IsSourceArtifact() && input.Root().BaseName() != "include" {
		return false
	}

	d := input.RootRelativePath().Parent()
	if d.SegmentCount() == 0 || containsPath(dirs, d) {
		return true
	}
	for _, w := range dirs {
		if w.BaseName() == "**" && d.StartsWith(w.Parent()) {
			return true
		}
	}

	if subPackages == nil {
		return false
	}
	for dir := d; !dir.IsEmpty(); {
		if subPackages.IsPackageBoundary(dir) {
			return false
		}
		parent := dir.Parent()
		if parent.IsEmpty() {
			return false
		}
		dir = parent
		if containsPath(dirs, dir) {
			return true
		}
	}
	return false
}

func containsPath(dirs []fs.Path, p fs.Path) bool {
	for _, d := range dirs {
		if d.Equal(p) {
			return true
		}
	}
	return false
}
