package heuristic

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/numeric"
)

// Side is the balance-sheet side a line item belongs to.
type Side int

const (
	Unclassified Side = iota
	Active
	Passive
)

func (s Side) String() string {
	switch s {
	case Active:
		return "active"
	case Passive:
		return "passive"
	default:
		return "unclassified"
	}
}

var sides = map[string]Side{
	model.NonCurrentAssets:     Active,
	model.Cash:                 Active,
	model.FinancialInvestments: Active,
	model.IntangibleAssets:     Active,
	model.Inventory:            Active,
	model.Equity:               Passive,
	model.LongTermDebt:         Passive,
	model.AccountsPayable:      Passive,
}

// SideOf returns the side of a balance key. Keys outside the lookup are Unclassified.
func SideOf(key string) Side {
	return sides[key]
}

const (
	defaultGap = 150
	totalGap   = 40
)

// Pattern recognizes one labelled amount: a label phrase followed by the
// nearest number within MaxGap characters.
type Pattern struct {
	Key    string
	Label  *regexp.Regexp
	MaxGap int
}

func pattern(key, label string) Pattern {
	return Pattern{Key: key, Label: regexp.MustCompile(`(?i)` + label), MaxGap: defaultGap}
}

// BalancePatterns are searched inside the balance window.
var BalancePatterns = []Pattern{
	pattern(model.NonCurrentAssets, `внеоборотн\p{L}*\s+актив\p{L}*`),
	pattern(model.Inventory, `запас\p{L}*`),
	pattern(model.Cash, `денежн\p{L}*\s*ср\p{L}*`),
	pattern(model.FinancialInvestments, `финан\p{L}*\s*влож\p{L}*`),
	pattern(model.IntangibleAssets, `нематер\p{L}*\s*актив\p{L}*`),
	pattern(model.Equity, `капитал\p{L}*[^\n]*?резерв\p{L}*`),
	pattern(model.LongTermDebt, `долгосрочн\p{L}*\s*за[её]м\p{L}*\s*средств\p{L}*`),
	pattern(model.AccountsPayable, `кредитор\p{L}*\s*задолж\p{L}*`),
}

// IncomePatterns are searched over the whole transcript.
var IncomePatterns = []Pattern{
	pattern(model.Revenue, `выруч\p{L}*`),
	pattern(model.NetProfit, `чист\p{L}*\s*приб\p{L}*`),
	pattern(model.IncomeTax, `нал(ог)?\.?\s*на\s*прибыль`),
	pattern(model.Expenses, `расх\p{L}*`),
}

// Total patterns for the two balance sides.
var (
	TotalActivePattern = Pattern{
		Key:    model.TotalAssets,
		Label:  regexp.MustCompile(`(?i)(?:итог\p{L}*[^\n]*?актив\p{L}*|всего[^\n]*?актив\p{L}*)`),
		MaxGap: totalGap,
	}
	TotalPassivePattern = Pattern{
		Key:    model.TotalLiabilities,
		Label:  regexp.MustCompile(`(?i)(?:итог\p{L}*[^\n]*?пассив\p{L}*|всего[^\n]*?пассив\p{L}*)`),
		MaxGap: totalGap,
	}
)

// Find returns the amount after the first label occurrence that is followed
// by a number.
func (p Pattern) Find(text string) (float64, bool) {
	for _, loc := range p.Label.FindAllStringSubmatchIndex(text, -1) {
		token, ok := amountAfter(text[loc[1]:], p.MaxGap)
		if !ok {
			continue
		}

		groups := make([]string, 0, len(loc)/2)
		for i := 2; i+1 < len(loc); i += 2 {
			if loc[i] >= 0 {
				groups = append(groups, text[loc[i]:loc[i+1]])
			}
		}
		groups = append(groups, token)

		if v := numeric.Parse(LastDigitGroup(groups)); v != nil {
			return *v, true
		}
	}
	return 0, false
}

// LastDigitGroup returns the last candidate that contains a digit, or "".
func LastDigitGroup(groups []string) string {
	for i := len(groups) - 1; i >= 0; i-- {
		if strings.ContainsFunc(groups[i], unicode.IsDigit) {
			return groups[i]
		}
	}
	return ""
}

var amountToken = regexp.MustCompile(`^\(?-?(?:\d{1,3}(?:[ \x{00a0}\x{2009}\x{202f}]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)?)\)?`)

// amountAfter returns the nearest numeric token in s, starting within maxGap
// runes. A leading form line code is skipped when another number follows it
// on the same line; the row is then columnar and only its first value is kept.
func amountAfter(s string, maxGap int) (string, bool) {
	start, ok := tokenStart(s, maxGap)
	if !ok {
		return "", false
	}
	token := amountToken.FindString(s[start:])
	if token == "" {
		return "", false
	}

	if IsLineCode(token) {
		rest := s[start+len(token):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		if next, ok := tokenStart(rest, utf8.RuneCountInString(rest)); ok {
			if t := amountToken.FindString(rest[next:]); t != "" {
				return FirstColumn(t), true
			}
		}
	}
	return token, true
}

// FirstColumn splits a run of single-space digit groups that spans two
// columns, such as "1 000 000 900 000", and returns the first value. A new
// value can only start at a group without a leading zero, and both values
// must have at least two groups; among such splits the most even one wins,
// ties going to the longer first value. Tokens with a sign in parentheses or
// a decimal part are returned unchanged.
func FirstColumn(token string) string {
	body, sign := token, ""
	if strings.HasPrefix(body, "-") {
		body, sign = body[1:], "-"
	}
	if strings.ContainsAny(body, "(),.") {
		return token
	}

	groups := strings.FieldsFunc(body, isGroupSeparator)
	n := len(groups)
	best := 0
	for i := 2; i <= n-2; i++ {
		if groups[i][0] == '0' {
			continue
		}
		if best == 0 || imbalance(i, n) <= imbalance(best, n) {
			best = i
		}
	}
	if best == 0 {
		return token
	}
	return sign + strings.Join(groups[:best], " ")
}

func imbalance(split, n int) int {
	d := 2*split - n
	if d < 0 {
		return -d
	}
	return d
}

func isGroupSeparator(r rune) bool {
	switch r {
	case ' ', '\u00a0', '\u2009', '\u202f':
		return true
	}
	return false
}

// tokenStart finds the byte offset of the first number-looking position
// within maxGap runes.
func tokenStart(s string, maxGap int) (int, bool) {
	runes := 0
	for i := range s {
		if runes > maxGap {
			return 0, false
		}
		if amountToken.MatchString(s[i:]) {
			return i, true
		}
		runes++
	}
	return 0, false
}

// IsLineCode reports whether token is a statement line code (1100–1700,
// 2100–2600, 3100–3600, 4100–4500, multiples of ten) rather than an amount.
func IsLineCode(token string) bool {
	if len(token) != 4 {
		return false
	}
	n := 0
	for _, c := range token {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	if n%10 != 0 {
		return false
	}
	switch {
	case n >= 1100 && n <= 1700, n >= 2100 && n <= 2600, n >= 3100 && n <= 3600, n >= 4100 && n <= 4500:
		return true
	}
	return false
}
