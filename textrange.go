package marginalia

import "fmt"

// TextRange is a half-open [Start, End) span of rune offsets into the plain
// text of one document.
type TextRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// NewTextRange creates a TextRange, rejecting empty, inverted, or negative spans.
func NewTextRange(start, end int) (TextRange, error) {
	r := TextRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return TextRange{}, err
	}
	return r, nil
}

// Validate returns ErrInvalidRange if the range is empty, inverted, or negative.
func (r TextRange) Validate() error {
	if r.Start < 0 || r.End < 0 {
		return fmt.Errorf("%w: negative bound in %s", ErrInvalidRange, r)
	}
	if r.Start >= r.End {
		return fmt.Errorf("%w: start must precede end in %s", ErrInvalidRange, r)
	}
	return nil
}

// Len returns the number of runes covered.
func (r TextRange) Len() int {
	return r.End - r.Start
}

// Contains reports whether offset falls inside the range.
func (r TextRange) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// Overlaps reports whether the two ranges share at least one rune.
func (r TextRange) Overlaps(other TextRange) bool {
	return r.Start < other.End && other.Start < r.End
}

func (r TextRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}
