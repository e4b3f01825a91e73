// Package heuristic recovers balance-sheet and income-statement amounts from
// raw statement text with labelled regular expressions. Every pattern is a
// standalone value so each match decision can be checked on its own.
package heuristic

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/fin-extract/internal/model"
)

const (
	// BalanceWindow is how many characters after the first "баланс" are searched for balance lines.
	BalanceWindow = 5000
	nameWindow    = 200
	maxNameLength = 200
)

var (
	yearPhrase  = regexp.MustCompile(`(?i)за\s+((?:19|20)\d{2})\s*(?:год|г\.)?`)
	yearNearby  = regexp.MustCompile(`(?i)(?:баланс|отч[её]т)[^\n]{0,30}?((?:19|20)\d{2})`)
	innPattern  = regexp.MustCompile(`(?i)ИНН(?:\s*/\s*КПП)?[\s:№]*(\d{10}(?:\d{2})?)\b`)
	kppPattern  = regexp.MustCompile(`(?i)КПП[\s:№]*(\d{9})\b`)
	kppAfterINN = regexp.MustCompile(`\d{10}\s*/\s*(\d{9})\b`)
	balanceWord = regexp.MustCompile(`(?i)баланс`)
)

// Year returns the reporting year named in text, or "".
func Year(text string) string {
	if m := yearPhrase.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := yearNearby.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// Identity finds the first labelled tax id and takes the closest non-blank
// line before it as the filer name.
func Identity(text string) model.CompanyInfo {
	var c model.CompanyInfo

	loc := innPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return c
	}
	c.INN = text[loc[2]:loc[3]]

	before := lastRunes(text[:loc[0]], nameWindow)
	lines := strings.Split(before, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			c.Name = firstRunes(l, maxNameLength)
			break
		}
	}

	if m := kppAfterINN.FindStringSubmatch(text[loc[0]:]); m != nil {
		c.KPP = m[1]
	} else if m := kppPattern.FindStringSubmatch(text); m != nil {
		c.KPP = m[1]
	}
	return c
}

// Window returns the balance section: BalanceWindow characters from the first
// "баланс". ok is false when the word does not occur.
func Window(text string) (string, bool) {
	loc := balanceWord.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return firstRunes(text[loc[0]:], BalanceWindow), true
}

// Extract applies every pattern to text. It never fails; a transcript with
// no recognizable amounts yields a payload whose Empty method reports true.
func Extract(text string) *model.HeuristicPayload {
	p := &model.HeuristicPayload{
		ReportYear:   Year(text),
		Company:      Identity(text),
		Active:       map[string]float64{},
		Passive:      map[string]float64{},
		Unclassified: map[string]float64{},
		Income:       map[string]float64{},
	}

	if window, ok := Window(text); ok {
		for _, pat := range BalancePatterns {
			v, found := pat.Find(window)
			if !found {
				continue
			}
			switch SideOf(pat.Key) {
			case Active:
				p.Active[pat.Key] = v
			case Passive:
				p.Passive[pat.Key] = v
			default:
				p.Unclassified[pat.Key] = v
			}
		}
		if v, ok := TotalActivePattern.Find(window); ok {
			p.TotalActive = &v
		}
		if v, ok := TotalPassivePattern.Find(window); ok {
			p.TotalPassive = &v
		}
	}

	for _, pat := range IncomePatterns {
		if v, ok := pat.Find(text); ok {
			p.Income[pat.Key] = v
		}
	}
	return p
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func lastRunes(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	skip := count - n
	i := 0
	for pos := range s {
		if i == skip {
			return s[pos:]
		}
		i++
	}
	return s
}
