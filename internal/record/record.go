// Package record folds the outcomes of the extraction cascade into the
// canonical multi-year record.
package record

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/fin-extract/internal/model"
)

var priority = map[model.StrategyID]int{
	model.StrategyStructured: 0,
	model.StrategyHeuristic:  1,
	model.StrategyDelegated:  2,
}

// Merge builds the record for doc from the attempts made on it. The first
// successful attempt in strategy priority order supplies the data; when none
// succeeded the record carries a diagnostic describing every attempt.
func Merge(doc *model.RawDocument, attempts []model.AttemptResult) model.Record {
	r := model.Record{
		Filename:      doc.Filename,
		ContentHash:   doc.Hash,
		MultiYearData: model.EmptyMultiYearData(),
	}
	for _, a := range attempts {
		r.Attempts = append(r.Attempts, a.Summary())
	}

	winner, ok := pick(attempts)
	if !ok {
		return failed(r, attempts, nil)
	}

	switch p := winner.Payload.(type) {
	case *model.StructuredPayload:
		fromStructured(&r, p)
	case *model.HeuristicPayload:
		fromHeuristic(&r, p)
	case *model.DelegatedPayload:
		fromDelegated(&r, p)
	}
	r.Strategy = winner.Strategy
	r.Source = winner.Source
	r.Warnings = append(r.Warnings, winner.Warnings...)
	r.Warnings = append(r.Warnings, align(&r.MultiYearData)...)

	if !r.MultiYearData.HasValue() {
		return failed(r, attempts, &model.Diagnostic{
			Kind:    model.ErrNoData,
			Message: fmt.Sprintf("%s: %s: strategy succeeded without any value", winner.Strategy, model.ErrNoData),
		})
	}
	r.Success = true
	return r
}

func pick(attempts []model.AttemptResult) (model.AttemptResult, bool) {
	ordered := make([]model.AttemptResult, len(attempts))
	copy(ordered, attempts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priority[ordered[i].Strategy] < priority[ordered[j].Strategy]
	})
	for _, a := range ordered {
		if a.Success() {
			return a, true
		}
	}
	return model.AttemptResult{}, false
}

// failed resets r to the failure shape. The diagnostic kind is the last
// attempt's (or extra's), its message lists every attempt in order.
func failed(r model.Record, attempts []model.AttemptResult, extra *model.Diagnostic) model.Record {
	out := model.Record{
		Filename:      r.Filename,
		ContentHash:   r.ContentHash,
		MultiYearData: model.EmptyMultiYearData(),
		Warnings:      r.Warnings,
		Attempts:      r.Attempts,
	}

	var parts []string
	diag := &model.Diagnostic{Kind: model.ErrNoData}
	for _, a := range attempts {
		if a.Diagnostic == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s: %s", a.Strategy, a.Diagnostic.Kind, a.Diagnostic.Message))
		diag.Kind = a.Diagnostic.Kind
		diag.Retryable = a.Diagnostic.Retryable
		diag.RawResponse = a.Diagnostic.RawResponse
	}
	if extra != nil {
		parts = append(parts, extra.Message)
		diag.Kind = extra.Kind
		diag.Retryable = false
	}
	if len(parts) == 0 {
		parts = append(parts, "no extraction strategy applied to this document")
	}
	diag.Message = strings.Join(parts, "; ")
	out.Diagnostic = diag
	return out
}

func fromStructured(r *model.Record, p *model.StructuredPayload) {
	r.ReportYear = p.Meta.ReportYear
	r.ReportDate = p.Meta.ReportDate
	r.FormCode = p.Meta.FormCode
	r.CompanyInfo = p.Company

	var labels []string
	switch {
	case p.Meta.Simplified:
		labels = append(labels, model.LabelSimplified)
	case p.HasBalance():
		labels = append(labels, model.LabelBalanceSheet)
	}
	if p.HasIncome() {
		labels = append(labels, model.LabelIncomeStatement)
	}
	r.ReportTypeLabel = strings.Join(labels, " + ")

	switch {
	case p.HasBalance() && p.HasIncome():
		r.ReportType = model.ReportCombined
	case p.HasBalance():
		r.ReportType = model.ReportBalanceSheet
	case p.HasIncome():
		r.ReportType = model.ReportIncomeStatement
	}

	columns := 2
	if p.HasBalance() {
		columns = 3
	}
	m := &r.MultiYearData
	m.Years = DeriveYears(p.Meta.ReportYear, columns)

	if p.Active != nil {
		m.Balance[model.TotalAssets] = p.Active.Total[:]
		for _, l := range p.Active.Lines {
			m.Balance[l.Key] = l.Values[:]
		}
	}
	if p.Passive != nil {
		m.Balance[model.TotalLiabilities] = p.Passive.Total[:]
		for _, l := range p.Passive.Lines {
			m.Balance[l.Key] = l.Values[:]
		}
	}
	for _, l := range p.Income {
		m.FinancialResults[l.Key] = l.Values[:]
	}
}

// DeriveYears returns n column labels counting back from year. A year that
// is not an integer keeps its label and the earlier columns get the
// placeholder; a missing year yields placeholders only.
func DeriveYears(year string, n int) []string {
	years := make([]string, n)
	y, err := strconv.Atoi(strings.TrimSpace(year))
	for i := range years {
		switch {
		case err == nil:
			years[i] = strconv.Itoa(y - i)
		case i == 0 && year != "":
			years[i] = year
		default:
			years[i] = model.YearPlaceholder
		}
	}
	return years
}

func fromHeuristic(r *model.Record, p *model.HeuristicPayload) {
	r.ReportYear = p.ReportYear
	r.CompanyInfo = p.Company

	hasIncome := len(p.Income) > 0
	switch {
	case p.HasBalance() && hasIncome:
		r.ReportType = model.ReportCombined
		r.ReportTypeLabel = model.LabelBalanceSheet + " + " + model.LabelIncomeStatement
	case p.HasBalance():
		r.ReportType = model.ReportBalanceSheet
		r.ReportTypeLabel = model.LabelBalanceSheet
	case hasIncome:
		r.ReportType = model.ReportIncomeStatement
		r.ReportTypeLabel = model.LabelIncomeStatement
	}

	year := p.ReportYear
	if year == "" {
		year = model.YearPlaceholder
	}
	m := &r.MultiYearData
	m.Years = []string{year}

	for _, group := range []map[string]float64{p.Active, p.Passive, p.Unclassified} {
		for k, v := range group {
			m.Balance[k] = model.Series{model.Float(v)}
		}
	}
	if p.TotalActive != nil {
		m.Balance[model.TotalAssets] = model.Series{model.Float(*p.TotalActive)}
	}
	if p.TotalPassive != nil {
		m.Balance[model.TotalLiabilities] = model.Series{model.Float(*p.TotalPassive)}
	}
	for k, v := range p.Income {
		m.FinancialResults[k] = model.Series{model.Float(v)}
	}
}

func fromDelegated(r *model.Record, p *model.DelegatedPayload) {
	r.ReportType = p.ReportType
	r.ReportTypeLabel = p.ReportTypeLabel
	r.ReportYear = p.ReportYear
	r.CompanyInfo = p.Company
	r.Analysis = p.Analysis

	m := &r.MultiYearData
	m.Years = append([]string{}, p.Years...)
	for k, s := range p.Balance {
		m.Balance[k] = s
	}
	for k, s := range p.FinancialResults {
		m.FinancialResults[k] = s
	}
	if len(p.CashFlows) > 0 {
		m.CashFlows = make(map[string]model.Series, len(p.CashFlows))
		for k, s := range p.CashFlows {
			m.CashFlows[k] = s
		}
	}

	if p.Repaired {
		r.Warnings = append(r.Warnings, "delegated response was not strict JSON and was repaired before decoding")
	}
}

// align pads every series to len(years) with nulls. Longer series are cut
// and reported, since the extra values cannot be placed in any year.
func align(m *model.MultiYearData) []string {
	n := len(m.Years)
	var warnings []string
	for _, sec := range []model.Section{model.SectionBalance, model.SectionFinancialResults, model.SectionCashFlows} {
		series := m.Sections()[sec]
		keys := make([]string, 0, len(series))
		for k := range series {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			s := series[k]
			switch {
			case len(s) < n:
				padded := make(model.Series, n)
				copy(padded, s)
				series[k] = padded
			case len(s) > n:
				warnings = append(warnings, fmt.Sprintf(
					"%s.%s: %d values for %d years, dropped %d", sec, k, len(s), n, len(s)-n))
				series[k] = append(model.Series(nil), s[:n]...)
			}
		}
	}
	return warnings
}

// Rejected builds the record of a document the classifier refused.
func Rejected(doc *model.RawDocument, reason string) model.Record {
	return model.Record{
		Filename:      doc.Filename,
		ContentHash:   doc.Hash,
		MultiYearData: model.EmptyMultiYearData(),
		Diagnostic:    &model.Diagnostic{Kind: model.ErrClassificationRejected, Message: reason},
	}
}
