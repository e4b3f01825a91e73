package model

import (
	"bytes"
	"strconv"
)

// ReportType is the kind of statement a record was extracted from.
type ReportType string

const (
	ReportBalanceSheet    ReportType = "balance_sheet"
	ReportIncomeStatement ReportType = "income_statement"
	ReportCashFlow        ReportType = "cash_flow"
	ReportCombined        ReportType = "combined"
	ReportUnknown         ReportType = "unknown"
)

// Display labels for report types.
const (
	LabelBalanceSheet    = "Бухгалтерский баланс"
	LabelIncomeStatement = "Отчет о финансовых результатах"
	LabelCashFlow        = "Отчет о движении денежных средств"
	LabelSimplified      = "Упрощенная форма"
	LabelFullReport      = "Полная отчетность"
)

// YearPlaceholder stands in for a year label that could not be derived.
const YearPlaceholder = "N/A"

// Series is a sequence of values aligned with MultiYearData.Years. A nil
// element is an absent observation.
type Series []*float64

// MarshalJSON renders values without exponent notation.
func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if v == nil {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(*v, 'f', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// HasValue reports whether any element is non-nil.
func (s Series) HasValue() bool {
	for _, v := range s {
		if v != nil {
			return true
		}
	}
	return false
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// MultiYearData is the line-item-by-year matrix.
type MultiYearData struct {
	Years            []string          `json:"years" yaml:"years"`
	Balance          map[string]Series `json:"balance" yaml:"balance"`
	FinancialResults map[string]Series `json:"financial_results" yaml:"financial_results"`
	CashFlows        map[string]Series `json:"cash_flows,omitempty" yaml:"cash_flows,omitempty"`
}

// EmptyMultiYearData returns the well-formed empty matrix carried by failed records.
func EmptyMultiYearData() MultiYearData {
	return MultiYearData{
		Years:            []string{},
		Balance:          map[string]Series{},
		FinancialResults: map[string]Series{},
	}
}

// Sections returns the three blocks keyed by section name. Nil maps are skipped.
func (m *MultiYearData) Sections() map[Section]map[string]Series {
	out := make(map[Section]map[string]Series, 3)
	if m.Balance != nil {
		out[SectionBalance] = m.Balance
	}
	if m.FinancialResults != nil {
		out[SectionFinancialResults] = m.FinancialResults
	}
	if m.CashFlows != nil {
		out[SectionCashFlows] = m.CashFlows
	}
	return out
}

// HasValue reports whether the matrix holds at least one non-null value.
func (m *MultiYearData) HasValue() bool {
	for _, sec := range m.Sections() {
		for _, s := range sec {
			if s.HasValue() {
				return true
			}
		}
	}
	return false
}

// CompanyInfo carries best-effort filer identity hints.
type CompanyInfo struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	INN       string `json:"inn,omitempty" yaml:"inn,omitempty"`
	KPP       string `json:"kpp,omitempty" yaml:"kpp,omitempty"`
	Address   string `json:"address,omitempty" yaml:"address,omitempty"`
	OKVED     string `json:"okved,omitempty" yaml:"okved,omitempty"`
	OKOPF     string `json:"okopf,omitempty" yaml:"okopf,omitempty"`
	OKPO      string `json:"okpo,omitempty" yaml:"okpo,omitempty"`
	OKFS      string `json:"okfs,omitempty" yaml:"okfs,omitempty"`
	Signatory string `json:"signatory,omitempty" yaml:"signatory,omitempty"`
}

// KeyMetrics are the ratios requested from the delegated model.
type KeyMetrics struct {
	RevenueGrowth *float64 `json:"revenue_growth" yaml:"revenue_growth"`
	ProfitMargin  *float64 `json:"profit_margin" yaml:"profit_margin"`
	ROA           *float64 `json:"roa" yaml:"roa"`
	ROE           *float64 `json:"roe" yaml:"roe"`
	DebtToEquity  *float64 `json:"debt_to_equity" yaml:"debt_to_equity"`
	CurrentRatio  *float64 `json:"current_ratio" yaml:"current_ratio"`
	QuickRatio    *float64 `json:"quick_ratio" yaml:"quick_ratio"`
}

// Analysis is the derived assessment only the delegated strategy produces.
type Analysis struct {
	FinancialHealth          string     `json:"financial_health,omitempty" yaml:"financial_health,omitempty"`
	KeyMetrics               KeyMetrics `json:"key_metrics" yaml:"key_metrics"`
	Strengths                []string   `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	Weaknesses               []string   `json:"weaknesses,omitempty" yaml:"weaknesses,omitempty"`
	Risks                    []string   `json:"risks,omitempty" yaml:"risks,omitempty"`
	InvestmentRating         string     `json:"investment_rating,omitempty" yaml:"investment_rating,omitempty"`
	InvestmentRecommendation string     `json:"investment_recommendation,omitempty" yaml:"investment_recommendation,omitempty"`
	Summary                  string     `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// AttemptSummary is the per-strategy outcome kept on the record.
type AttemptSummary struct {
	Strategy  StrategyID `json:"strategy" yaml:"strategy"`
	Success   bool       `json:"success" yaml:"success"`
	ErrorKind ErrorKind  `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Message   string     `json:"message,omitempty" yaml:"message,omitempty"`
}

// Record is the canonical multi-year financial record, one per input document.
type Record struct {
	ID              string           `json:"id,omitempty" yaml:"id,omitempty"`
	Filename        string           `json:"filename" yaml:"filename"`
	ContentHash     string           `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
	Success         bool             `json:"success" yaml:"success"`
	ReportType      ReportType       `json:"report_type,omitempty" yaml:"report_type,omitempty"`
	ReportTypeLabel string           `json:"report_type_label,omitempty" yaml:"report_type_label,omitempty"`
	ReportYear      string           `json:"report_year,omitempty" yaml:"report_year,omitempty"`
	ReportDate      string           `json:"report_date,omitempty" yaml:"report_date,omitempty"`
	FormCode        string           `json:"form_code,omitempty" yaml:"form_code,omitempty"`
	CompanyInfo     CompanyInfo      `json:"company_info" yaml:"company_info"`
	MultiYearData   MultiYearData    `json:"multi_year_data" yaml:"multi_year_data"`
	Analysis        *Analysis        `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Strategy        StrategyID       `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Source          string           `json:"source,omitempty" yaml:"source,omitempty"`
	Warnings        []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Attempts        []AttemptSummary `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Diagnostic      *Diagnostic      `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}
