package cc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// IncludeProblems accumulates the offending exec-path strings the inclusion
// validator finds, in the order they were added, so that a fatal error
// names every violation instead of only the first one it happened to see.
type IncludeProblems struct {
	paths []string
}

// Add records one offending path.
func (p *IncludeProblems) Add(path string) {
	p.paths = append(p.paths, path)
}

// HasProblems reports whether any path has been recorded.
func (p *IncludeProblems) HasProblems() bool {
	return len(p.paths) > 0
}

// Paths returns the recorded paths in the order they were added.
func (p *IncludeProblems) Paths() []string {
	return p.paths
}

// Message renders a human-readable summary naming the owning label, source
// file, and every offending path, sorted for determinism.
func (p *IncludeProblems) Message(sourceLabel, sourceFile string) string {
	sorted := append([]string{}, p.paths...)
	sort.Strings(sorted)
	return fmt.Sprintf("undeclared inclusion(s) in rule '%s', source file '%s':\n  %s",
		sourceLabel, sourceFile, strings.Join(sorted, "\n  "))
}

// AssertProblemFree returns a fatal error naming every recorded path if any
// were recorded, or nil if the set is empty.
func (p *IncludeProblems) AssertProblemFree(sourceLabel, sourceFile string) error {
	if !p.HasProblems() {
		return nil
	}
	var merr *multierror.Error
	for _, path := range p.paths {
		merr = multierror.Append(merr, fmt.Errorf("undeclared inclusion: %s", path))
	}
	message := p.Message(sourceLabel, sourceFile)
	merr.ErrorFormat = func([]error) string { return message }
	return merr
}
