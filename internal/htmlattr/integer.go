// Package htmlattr reads attribute values with the parsing rules browsers
// apply, which are looser than Go's strconv.
package htmlattr

import (
	"strconv"
	"strings"
)

// asciiWhitespace is the HTML definition: tab, LF, FF, CR and space.
const asciiWhitespace = "\t\n\f\r "

// Integer parses s with the HTML rules for signed integers. Leading ASCII
// whitespace is skipped, one sign is accepted, and parsing stops at the first
// non-digit, so "2abc" is 2 and " 3 " is 3. ok is false when no digit
// follows the sign or the value does not fit an int.
func Integer(s string) (n int, ok bool) {
	s = strings.TrimLeft(s, asciiWhitespace)

	negative := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}
