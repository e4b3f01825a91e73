// Package numeric parses locale-formatted amounts as they appear in Russian
// financial statements: space thousands, comma decimals, parenthesized negatives.
package numeric

import (
	"strconv"
	"strings"
)

var spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u2009", " ", "\u202f", " ")

// Parse converts token into a signed number. It returns nil when nothing
// numeric remains or the residue does not parse. It never panics.
func Parse(token string) *float64 {
	s := strings.TrimSpace(spaceReplacer.Replace(token))
	if s == "" {
		return nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return nil
	}

	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}

	var v float64
	if !strings.Contains(s, ".") {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		v = float64(n)
	} else {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		v = f
	}

	if negative {
		v = -v
	}
	return &v
}

// Format renders v in the normalized form Parse accepts back unchanged.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
