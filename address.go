package marginalia

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// AddressMode specifies how a position is interpreted.
type AddressMode int

const (
	// RuneMode specifies an absolute rune offset (0-indexed).
	RuneMode AddressMode = iota

	// LineRuneMode specifies a line number and rune position within that line (both 0-indexed).
	// The newline character is considered the last character of its line.
	LineRuneMode
)

// Address specifies a position in a document's text.
type Address struct {
	Mode AddressMode

	// Rune is used when Mode is RuneMode.
	Rune int

	// Line and LineRune are used when Mode is LineRuneMode.
	Line     int
	LineRune int
}

// RuneAddress creates an Address in rune mode.
func RuneAddress(pos int) Address {
	return Address{Mode: RuneMode, Rune: pos}
}

// LineAddress creates an Address in line:rune mode.
func LineAddress(line, runeInLine int) Address {
	return Address{Mode: LineRuneMode, Line: line, LineRune: runeInLine}
}

// Offset resolves the address to a rune offset in text. The offset equal to
// the text length is valid, since it can end a range.
func (a Address) Offset(text string) (int, error) {
	total := utf8.RuneCountInString(text)
	switch a.Mode {
	case RuneMode:
		if a.Rune < 0 || a.Rune > total {
			return 0, fmt.Errorf("%w: rune %d of %d", ErrInvalidPosition, a.Rune, total)
		}
		return a.Rune, nil

	case LineRuneMode:
		if a.Line < 0 || a.LineRune < 0 {
			return 0, fmt.Errorf("%w: line %d:%d", ErrInvalidPosition, a.Line, a.LineRune)
		}
		lines := strings.SplitAfter(text, "\n")
		if a.Line >= len(lines) {
			return 0, fmt.Errorf("%w: line %d of %d", ErrInvalidPosition, a.Line, len(lines))
		}
		offset := 0
		for _, line := range lines[:a.Line] {
			offset += utf8.RuneCountInString(line)
		}
		lineLen := utf8.RuneCountInString(lines[a.Line])
		if a.LineRune > lineLen {
			return 0, fmt.Errorf("%w: line %d has %d runes", ErrInvalidPosition, a.Line, lineLen)
		}
		return offset + a.LineRune, nil
	}
	return 0, fmt.Errorf("unknown address mode %d", a.Mode)
}

// RangeBetween resolves two addresses into a TextRange over text.
func RangeBetween(text string, start, end Address) (TextRange, error) {
	s, err := start.Offset(text)
	if err != nil {
		return TextRange{}, err
	}
	e, err := end.Offset(text)
	if err != nil {
		return TextRange{}, err
	}
	return NewTextRange(s, e)
}
