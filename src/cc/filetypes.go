package cc

import "strings"

func hasAnySuffix(name string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

func isCSource(name string) bool {
	return hasAnySuffix(name, ".c")
}

func isCppSource(name string) bool {
	return hasAnySuffix(name, ".cc", ".cpp", ".cxx", ".c++", ".C")
}

func isCppHeader(name string) bool {
	return hasAnySuffix(name, ".h", ".hh", ".hpp", ".hxx", ".inc")
}

func isAssemblerOutput(name string) bool {
	return hasAnySuffix(name, ".s", ".S", ".pic.s")
}

func isPreprocessedOutput(name string) bool {
	return hasAnySuffix(name, ".i", ".ii")
}
