package documents

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const quoteCutset = "\"'“”‘’"

// fileExtensions are the suffixes stripped from the last path element.
// Dotted words outside this set stay part of the name, so "my.notes.txt"
// keys as "my.notes" rather than "my".
var fileExtensions = map[string]struct{}{
	"txt": {}, "md": {}, "markdown": {}, "rst": {}, "tex": {}, "log": {},
	"pdf": {}, "doc": {}, "docx": {}, "odt": {}, "rtf": {}, "epub": {},
	"html": {}, "htm": {}, "xml": {}, "json": {}, "yaml": {}, "yml": {},
	"csv": {}, "tsv": {}, "xls": {}, "xlsx": {}, "ods": {}, "ppt": {}, "pptx": {}, "odp": {},
	"zip": {}, "tar": {}, "gz": {}, "tgz": {}, "bz2": {}, "xz": {}, "7z": {},
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "svg": {}, "webp": {},
}

// NormalizeFilename reduces a file name to the comparison key used to match
// user input against stored sources. It decomposes and drops non-ASCII
// runes, trims whitespace and quotes, lowercases, replaces punctuation
// other than . - _ / with spaces, collapses whitespace and strips known file
// extensions. Applying it twice yields the same key.
func NormalizeFilename(name string) string {
	ascii := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	s, _, err := transform.String(ascii, name)
	if err != nil {
		s = name
	}

	s = strings.Trim(strings.TrimSpace(s), quoteCutset)
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_', r == '/':
			return r
		default:
			return ' '
		}
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	return stripExtensions(s)
}

// stripExtensions removes known extensions from the last path element
// until none is left, which keeps the key a fixpoint.
func stripExtensions(s string) string {
	for {
		start := strings.LastIndexByte(s, '/') + 1
		base := s[start:]
		dot := strings.LastIndexByte(base, '.')
		if dot <= 0 || !isExtension(base[dot+1:]) {
			return s
		}
		s = strings.TrimSpace(s[:start+dot])
	}
}

func isExtension(ext string) bool {
	_, ok := fileExtensions[ext]
	return ok
}

// MatchesSource reports whether the normalized query is contained in the
// normalized form of any candidate. An empty normalized query matches
// nothing.
func MatchesSource(query string, candidates ...string) bool {
	q := NormalizeFilename(query)
	if q == "" {
		return false
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if strings.Contains(NormalizeFilename(c), q) {
			return true
		}
	}
	return false
}
