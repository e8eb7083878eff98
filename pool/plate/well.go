package plate

import (
	"fmt"
	"strconv"
	"strings"
)

// Well is a zero-based (row, column) position on a plate.
type Well struct {
	Row int
	Col int
}

// String renders the canonical label: row letters followed by the 1-based column (e.g. "B12").
func (w Well) String() string {
	return RowLabel(w.Row) + strconv.Itoa(w.Col+1)
}

// RowLabel encodes a zero-based row index as bijective base-26 letters:
// 0 → "A", 25 → "Z", 26 → "AA", 701 → "ZZ", 702 → "AAA".
// Negative rows render as "?".
func RowLabel(row int) string {
	if row < 0 {
		return "?"
	}
	var buf [8]byte
	i := len(buf)
	for n := row + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}

// ParseRowLabel is the inverse of RowLabel. Letters are case-insensitive.
func ParseRowLabel(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty row label")
	}
	n := 0
	for _, r := range strings.ToUpper(s) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid row label %q", s)
		}
		n = n*26 + int(r-'A'+1)
		if n > 1<<24 {
			return 0, fmt.Errorf("row label %q out of range", s)
		}
	}
	return n - 1, nil
}

// ParseWell parses labels such as "A1", "p24" or "AB03".
func ParseWell(label string) (Well, error) {
	label = strings.TrimSpace(label)
	split := strings.IndexFunc(label, func(r rune) bool { return r >= '0' && r <= '9' })
	if split <= 0 {
		return Well{}, fmt.Errorf("invalid well label %q", label)
	}
	row, err := ParseRowLabel(label[:split])
	if err != nil {
		return Well{}, fmt.Errorf("invalid well label %q: %w", label, err)
	}
	col, err := strconv.Atoi(label[split:])
	if err != nil || col < 1 {
		return Well{}, fmt.Errorf("invalid well label %q: bad column", label)
	}
	return Well{Row: row, Col: col - 1}, nil
}

// MustParseWell is ParseWell for literals; it panics on malformed input.
func MustParseWell(label string) Well {
	w, err := ParseWell(label)
	if err != nil {
		panic(err)
	}
	return w
}
