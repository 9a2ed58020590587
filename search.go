package marginalia

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// SearchOptions configures string search behavior.
type SearchOptions struct {
	CaseSensitive bool // If false, search is case-insensitive
	WholeWord     bool // If true, only match whole words
}

// SearchResult is one match, as a range of rune offsets.
type SearchResult struct {
	Range TextRange
	Match string
}

// FindString returns the first match of needle in text at or after the
// rune offset from. It returns false when there is no match.
func FindString(text, needle string, from int, opts SearchOptions) (SearchResult, bool, error) {
	re, err := stringPattern(needle, opts)
	if err != nil {
		return SearchResult{}, false, err
	}
	return findFirst(text, re, from, opts.WholeWord)
}

// FindStringAll returns every non-overlapping match of needle in text.
func FindStringAll(text, needle string, opts SearchOptions) ([]SearchResult, error) {
	re, err := stringPattern(needle, opts)
	if err != nil {
		return nil, err
	}
	return findAll(text, re, opts.WholeWord), nil
}

// FindRegex returns the first match of pattern at or after the rune offset from.
// Empty matches are skipped, since they cannot form a highlight.
func FindRegex(text, pattern string, from int, caseInsensitive bool) (SearchResult, bool, error) {
	re, err := compileRegex(pattern, caseInsensitive)
	if err != nil {
		return SearchResult{}, false, err
	}
	return findFirst(text, re, from, false)
}

// FindRegexAll returns every non-empty match of pattern in text.
func FindRegexAll(text, pattern string, caseInsensitive bool) ([]SearchResult, error) {
	re, err := compileRegex(pattern, caseInsensitive)
	if err != nil {
		return nil, err
	}
	return findAll(text, re, false), nil
}

// FindOccurrence returns the nth (0-indexed) match of needle in text.
func FindOccurrence(text, needle string, n int, opts SearchOptions) (SearchResult, bool, error) {
	all, err := FindStringAll(text, needle, opts)
	if err != nil {
		return SearchResult{}, false, err
	}
	if n < 0 || n >= len(all) {
		return SearchResult{}, false, nil
	}
	return all[n], true, nil
}

func stringPattern(needle string, opts SearchOptions) (*regexp.Regexp, error) {
	if needle == "" {
		return nil, ErrEmptyPattern
	}
	return compileRegex(regexp.QuoteMeta(needle), !opts.CaseSensitive)
}

// compileRegex compiles a regex pattern with optional case insensitivity.
func compileRegex(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}
	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

func findFirst(text string, re *regexp.Regexp, from int, wholeWord bool) (SearchResult, bool, error) {
	for _, m := range findAll(text, re, wholeWord) {
		if m.Range.Start >= from {
			return m, true, nil
		}
	}
	return SearchResult{}, false, nil
}

func findAll(text string, re *regexp.Regexp, wholeWord bool) []SearchResult {
	var results []SearchResult
	offsets := newRuneIndex(text)
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		if wholeWord && !isWholeWord(text, loc[0], loc[1]) {
			continue
		}
		results = append(results, SearchResult{
			Range: TextRange{Start: offsets.runeAt(loc[0]), End: offsets.runeAt(loc[1])},
			Match: text[loc[0]:loc[1]],
		})
	}
	return results
}

// isWholeWord checks that the bytes around [start, end) are not word characters.
func isWholeWord(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordChar(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordChar(r) {
			return false
		}
	}
	return true
}

// isWordChar returns true if r is a word character (letter, digit, or underscore).
func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// runeIndex converts byte offsets of a string to rune offsets.
type runeIndex struct {
	byteStarts []int
}

func newRuneIndex(text string) runeIndex {
	starts := make([]int, 0, len(text))
	for i := range text {
		starts = append(starts, i)
	}
	return runeIndex{byteStarts: starts}
}

// runeAt returns the rune offset of the byte offset b, which must fall on a
// rune boundary or at the end of the text.
func (ri runeIndex) runeAt(b int) int {
	lo, hi := 0, len(ri.byteStarts)
	for lo < hi {
		mid := (lo + hi) / 2
		if ri.byteStarts[mid] < b {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
