// Package depset parses the Make-style ".d" dependency files GCC and Clang
// emit with -MD/-MF: the sole source of dynamically discovered input paths
// for a C/C++ compile action.
package depset

import (
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"

	"github.com/please-build/cc-compile-action/src/fs"
)

// DependencySet is the ordered sequence of exec-paths named as dependencies
// in a .d file. Order is preserved exactly as it appears in the file,
// duplicates and all: the set is consumed positionally by the input-set
// updater, not as a true mathematical set.
type DependencySet struct {
	paths []fs.Path
}

// Paths returns the dependency paths in file order.
func (d DependencySet) Paths() []fs.Path {
	return d.paths
}

// Len returns the number of dependency entries, including duplicates.
func (d DependencySet) Len() int {
	return len(d.paths)
}

// Parse parses a Make-style dependency file from its raw bytes. The bytes
// are latin-1 encoded, not UTF-8: a byte above 0x7f is a single code point
// and must round-trip unchanged, which rules out decoding as UTF-8.
func Parse(data []byte) (DependencySet, error) {
	text := latin1ToUTF8(data)
	text = strings.ReplaceAll(text, "\\\r\n", " ")
	text = strings.ReplaceAll(text, "\\\n", " ")

	var deps []fs.Path
	for _, rule := range strings.Split(text, "\n") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		colon := strings.IndexByte(rule, ':')
		if colon < 0 {
			return DependencySet{}, errors.Errorf("depset: malformed dependency rule (missing ':'): %q", rule)
		}
		for _, tok := range splitEscapedWhitespace(rule[colon+1:]) {
			if tok != "" {
				deps = append(deps, fs.NewPath(tok))
			}
		}
	}
	return DependencySet{paths: deps}, nil
}

// ParseFile reads and parses a dependency file from disk. An I/O failure
// here is fatal to the compile action that requested it: the validator has
// nothing useful to say about a translation unit whose real dependencies
// were never determined.
func ParseFile(path string) (DependencySet, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return DependencySet{}, errors.Wrapf(err, "depset: reading dependency file %s", path)
	}
	return Parse(data)
}

// splitEscapedWhitespace splits on runs of whitespace, treating a
// backslash-space pair as a literal space embedded in the current token
// (the Make convention for paths containing spaces).
func splitEscapedWhitespace(s string) []string {
	var tokens []string
	var current strings.Builder
	escaped := false
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ' ' || r == '\t' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// latin1ToUTF8 reinterprets each input byte as a latin-1 code point and
// returns the equivalent UTF-8 string, so that every byte value is
// representable and none are lost to invalid-UTF-8 replacement.
func latin1ToUTF8(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
