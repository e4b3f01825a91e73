package model

import "time"

// StrategyID names an extraction strategy. The order of the constants is the
// cascade priority.
type StrategyID string

const (
	StrategyStructured StrategyID = "structured"
	StrategyHeuristic  StrategyID = "heuristic"
	StrategyDelegated  StrategyID = "delegated"
)

// Payload is the strategy-specific result of a successful attempt. It is a
// closed set: StructuredPayload, HeuristicPayload, DelegatedPayload.
type Payload interface {
	payload()
}

// AttemptResult is the outcome of one strategy invocation. A nil Payload
// means the attempt failed and Diagnostic says why.
type AttemptResult struct {
	Strategy   StrategyID
	Payload    Payload
	Transcript string
	Source     string
	Diagnostic *Diagnostic
	Warnings   []string
	Duration   time.Duration
}

// Success reports whether the attempt produced a payload.
func (a AttemptResult) Success() bool {
	return a.Payload != nil
}

// Failed builds a failed attempt.
func Failed(id StrategyID, d *Diagnostic) AttemptResult {
	return AttemptResult{Strategy: id, Diagnostic: d}
}

// Summary condenses the attempt for the record's attempts list.
func (a AttemptResult) Summary() AttemptSummary {
	s := AttemptSummary{Strategy: a.Strategy, Success: a.Success()}
	if a.Diagnostic != nil {
		s.ErrorKind = a.Diagnostic.Kind
		s.Message = a.Diagnostic.Message
	}
	return s
}

// DocumentMeta is the registry document header.
type DocumentMeta struct {
	ReportYear string
	ReportDate string
	FormCode   string
	Simplified bool
}

// Triplet is a balance line: reporting date, previous year end, the year before that.
type Triplet [3]*float64

// Pair is an income line: reporting period and previous period.
type Pair [2]*float64

// BalanceLine is a named balance-sheet row.
type BalanceLine struct {
	Key    string
	Values Triplet
}

// BalanceSide is one side of the balance sheet.
type BalanceSide struct {
	Total Triplet
	Lines []BalanceLine
}

// IncomeLine is a named income-statement row.
type IncomeLine struct {
	Key    string
	Values Pair
}

// StructuredPayload is produced by the registry-schema extractor.
type StructuredPayload struct {
	Meta    DocumentMeta
	Company CompanyInfo
	Active  *BalanceSide
	Passive *BalanceSide
	Income  []IncomeLine
}

func (*StructuredPayload) payload() {}

// HasBalance reports whether either balance side was present.
func (p *StructuredPayload) HasBalance() bool {
	return p.Active != nil || p.Passive != nil
}

// HasIncome reports whether the income block was present.
func (p *StructuredPayload) HasIncome() bool {
	return p.Income != nil
}

// HeuristicPayload is produced by the pattern extractor. Absent fields are
// missing from the maps, never zero.
type HeuristicPayload struct {
	ReportYear   string
	Company      CompanyInfo
	Active       map[string]float64
	Passive      map[string]float64
	Unclassified map[string]float64
	TotalActive  *float64
	TotalPassive *float64
	Income       map[string]float64
}

func (*HeuristicPayload) payload() {}

// HasBalance reports whether any balance value was recovered.
func (p *HeuristicPayload) HasBalance() bool {
	return len(p.Active) > 0 || len(p.Passive) > 0 || len(p.Unclassified) > 0 ||
		p.TotalActive != nil || p.TotalPassive != nil
}

// Empty reports whether neither balance nor income values were recovered.
func (p *HeuristicPayload) Empty() bool {
	return !p.HasBalance() && len(p.Income) == 0
}

// DelegatedPayload is the validated response of the inference service.
type DelegatedPayload struct {
	ReportType       ReportType
	ReportTypeLabel  string
	ReportYear       string
	Company          CompanyInfo
	Years            []string
	Balance          map[string]Series
	FinancialResults map[string]Series
	CashFlows        map[string]Series
	Analysis         *Analysis
	Provider         string
	// Repaired is set when the response was not strict JSON and had to be
	// repaired before decoding.
	Repaired bool
}

func (*DelegatedPayload) payload() {}
