package delegate

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/numeric"
)

// StripFences returns the payload of a Markdown code fence, or s itself
// when it is not fenced.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if _, after, ok := strings.Cut(s, "```json"); ok {
		before, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(before)
	}
	if _, after, ok := strings.Cut(s, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		// Drop a language tag such as "JSON" on the opening line.
		if i := strings.IndexByte(body, '\n'); i >= 0 && !strings.ContainsAny(body[:i], "{[") {
			body = body[i+1:]
		}
		return strings.TrimSpace(body)
	}
	return s
}

// Decode parses a model response into a payload. In lenient mode a response
// that is not strict JSON is repaired first and the payload is marked
// Repaired. Errors carry the DelegatedParseError kind and the raw response.
func Decode(raw string, lenient bool) (*model.DelegatedPayload, error) {
	body := StripFences(raw)
	if body == "" {
		return nil, parseError(raw, eris.New("delegate: empty response"))
	}

	var resp response
	err := json.Unmarshal([]byte(body), &resp)
	repaired := false
	if err != nil && lenient {
		resp = response{}
		if rerr := repairInto(body, &resp); rerr == nil {
			err = nil
			repaired = true
		}
	}
	if err != nil {
		return nil, parseError(raw, eris.Wrap(err, "delegate: decode response"))
	}

	p, err := resp.payload()
	if err != nil {
		return nil, parseError(raw, err)
	}
	p.Repaired = repaired
	return p, nil
}

// repairInto fixes common defects (trailing commas, single quotes, bare
// keys, comments) and decodes the result into v.
func repairInto(body string, v any) error {
	fixed, err := jsonrepair.RepairJSON(body)
	if err == nil {
		if err = json.Unmarshal([]byte(fixed), v); err == nil {
			return nil
		}
	}

	var generic any
	if herr := hjson.Unmarshal([]byte(body), &generic); herr != nil {
		return eris.Wrap(herr, "delegate: repair response")
	}
	b, err := json.Marshal(generic)
	if err != nil {
		return eris.Wrap(err, "delegate: re-encode repaired response")
	}
	return json.Unmarshal(b, v)
}

func parseError(raw string, err error) error {
	return &model.KindError{Kind: model.ErrDelegatedParse, Err: err, RawResponse: raw}
}

type response struct {
	ReportType    flexString     `json:"report_type"`
	ReportYear    flexString     `json:"report_year"`
	CompanyInfo   *companyInfo   `json:"company_info"`
	MultiYearData *multiYearData `json:"multi_year_data"`
	Analysis      *analysis      `json:"analysis"`
}

type companyInfo struct {
	Name    flexString `json:"name"`
	INN     flexString `json:"inn"`
	KPP     flexString `json:"kpp"`
	Address flexString `json:"address"`
}

type multiYearData struct {
	Years            flexStrings           `json:"years"`
	Balance          map[string]flexSeries `json:"balance"`
	FinancialResults map[string]flexSeries `json:"financial_results"`
	CashFlows        map[string]flexSeries `json:"cash_flows"`
}

type analysis struct {
	FinancialHealth          flexString  `json:"financial_health"`
	KeyMetrics               keyMetrics  `json:"key_metrics"`
	Strengths                flexStrings `json:"strengths"`
	Weaknesses               flexStrings `json:"weaknesses"`
	Risks                    flexStrings `json:"risks"`
	InvestmentRating         flexString  `json:"investment_rating"`
	InvestmentRecommendation flexString  `json:"investment_recommendation"`
	Summary                  flexString  `json:"summary"`
}

type keyMetrics struct {
	RevenueGrowth flexNumber `json:"revenue_growth"`
	ProfitMargin  flexNumber `json:"profit_margin"`
	ROA           flexNumber `json:"roa"`
	ROE           flexNumber `json:"roe"`
	DebtToEquity  flexNumber `json:"debt_to_equity"`
	CurrentRatio  flexNumber `json:"current_ratio"`
	QuickRatio    flexNumber `json:"quick_ratio"`
}

func (r *response) payload() (*model.DelegatedPayload, error) {
	if r.MultiYearData == nil {
		return nil, eris.New("delegate: response has no multi_year_data")
	}
	m := r.MultiYearData

	p := &model.DelegatedPayload{
		ReportYear:       strings.TrimSpace(string(r.ReportYear)),
		Years:            []string(m.Years),
		Balance:          canonicalSeries(m.Balance),
		FinancialResults: canonicalSeries(m.FinancialResults),
		CashFlows:        canonicalSeries(m.CashFlows),
	}
	p.ReportType, p.ReportTypeLabel = reportType(string(r.ReportType))

	if len(p.Years) == 0 {
		for _, sec := range []map[string]model.Series{p.Balance, p.FinancialResults, p.CashFlows} {
			for _, s := range sec {
				if len(s) > 0 {
					return nil, eris.New("delegate: multi_year_data.years is empty")
				}
			}
		}
	}

	if c := r.CompanyInfo; c != nil {
		p.Company = model.CompanyInfo{
			Name:    strings.TrimSpace(string(c.Name)),
			INN:     strings.TrimSpace(string(c.INN)),
			KPP:     strings.TrimSpace(string(c.KPP)),
			Address: strings.TrimSpace(string(c.Address)),
		}
	}

	if a := r.Analysis; a != nil {
		p.Analysis = &model.Analysis{
			FinancialHealth: string(a.FinancialHealth),
			KeyMetrics: model.KeyMetrics{
				RevenueGrowth: a.KeyMetrics.RevenueGrowth.v,
				ProfitMargin:  a.KeyMetrics.ProfitMargin.v,
				ROA:           a.KeyMetrics.ROA.v,
				ROE:           a.KeyMetrics.ROE.v,
				DebtToEquity:  a.KeyMetrics.DebtToEquity.v,
				CurrentRatio:  a.KeyMetrics.CurrentRatio.v,
				QuickRatio:    a.KeyMetrics.QuickRatio.v,
			},
			Strengths:                []string(a.Strengths),
			Weaknesses:               []string(a.Weaknesses),
			Risks:                    []string(a.Risks),
			InvestmentRating:         string(a.InvestmentRating),
			InvestmentRecommendation: string(a.InvestmentRecommendation),
			Summary:                  string(a.Summary),
		}
	}
	return p, nil
}

// canonicalSeries maps display labels the model may echo back onto
// catalog keys. Unknown keys are kept verbatim. When both a label and its
// key are present the key wins.
func canonicalSeries(in map[string]flexSeries) map[string]model.Series {
	if in == nil {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]model.Series, len(in))
	direct := make(map[string]bool, len(in))
	for _, k := range keys {
		series := in[k].series()
		key := strings.TrimSpace(k)
		if canon, ok := model.KeyForLabel(key); ok {
			if direct[canon] {
				continue
			}
			out[canon] = series
			continue
		}
		out[key] = series
		direct[key] = true
	}
	return out
}

// reportType maps either the enum value or a Russian statement name onto a
// ReportType and its display label.
func reportType(s string) (model.ReportType, string) {
	s = strings.TrimSpace(s)
	switch model.ReportType(strings.ToLower(s)) {
	case model.ReportBalanceSheet:
		return model.ReportBalanceSheet, model.LabelBalanceSheet
	case model.ReportIncomeStatement:
		return model.ReportIncomeStatement, model.LabelIncomeStatement
	case model.ReportCashFlow:
		return model.ReportCashFlow, model.LabelCashFlow
	case model.ReportCombined:
		return model.ReportCombined, model.LabelFullReport
	case model.ReportUnknown, "":
		return model.ReportUnknown, ""
	}

	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "полная"), strings.Contains(lower, "+"):
		return model.ReportCombined, s
	case strings.Contains(lower, "баланс"), strings.Contains(lower, "финансовом положении"):
		return model.ReportBalanceSheet, s
	case strings.Contains(lower, "финансовых результатах"):
		return model.ReportIncomeStatement, s
	case strings.Contains(lower, "движении денежных"):
		return model.ReportCashFlow, s
	default:
		return model.ReportUnknown, s
	}
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9')):
		*f = flexString(b)
	default:
		return eris.Errorf("delegate: expected string, got %s", truncate(b))
	}
	return nil
}

// flexStrings accepts a list of strings, a single string or null.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []flexString
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s := strings.TrimSpace(string(it)); s != "" {
				out = append(out, s)
			}
		}
		*f = out
		return nil
	}

	var single flexString
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	if s := strings.TrimSpace(string(single)); s != "" {
		*f = []string{s}
	} else {
		*f = nil
	}
	return nil
}

// flexNumber accepts a JSON number, a numeric string such as "1 234,5" or
// "+9.3%", or null. Strings that carry no number decode to nil.
type flexNumber struct {
	v *float64
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		f.v = nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.v = numeric.Parse(s)
	default:
		var v float64
		if err := json.Unmarshal(b, &v); err != nil {
			return eris.Errorf("delegate: expected number, got %s", truncate(b))
		}
		f.v = &v
	}
	return nil
}

// flexSeries accepts a list of flexNumber or a single value.
type flexSeries []flexNumber

func (f *flexSeries) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []flexNumber
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*f = items
		return nil
	}
	var single flexNumber
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	*f = flexSeries{single}
	return nil
}

func (f flexSeries) series() model.Series {
	out := make(model.Series, len(f))
	for i, n := range f {
		out[i] = n.v
	}
	return out
}

func truncate(b []byte) string {
	const limit = 40
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
