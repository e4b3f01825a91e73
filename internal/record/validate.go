package record

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-extract/internal/model"
)

// Validate checks the shape invariants of a record: every series matches
// the years, a successful record has at least one value, and a failed one
// has a diagnostic and an empty matrix.
func Validate(r *model.Record) error {
	var problems []string
	m := &r.MultiYearData

	if m.Balance == nil || m.FinancialResults == nil || m.Years == nil {
		problems = append(problems, "multi_year_data is missing years, balance or financial_results")
	}

	sections := m.Sections()
	names := make([]string, 0, len(sections))
	for sec := range sections {
		names = append(names, string(sec))
	}
	sort.Strings(names)
	for _, name := range names {
		for k, s := range sections[model.Section(name)] {
			if len(s) != len(m.Years) {
				problems = append(problems, fmt.Sprintf("%s.%s has %d values for %d years", name, k, len(s), len(m.Years)))
			}
		}
	}

	if r.Success {
		if !m.HasValue() {
			problems = append(problems, "successful record has no values")
		}
		if r.Diagnostic != nil {
			problems = append(problems, "successful record carries a diagnostic")
		}
	} else {
		if r.Diagnostic == nil {
			problems = append(problems, "failed record has no diagnostic")
		}
		if len(m.Years) > 0 || len(m.Balance) > 0 || len(m.FinancialResults) > 0 || len(m.CashFlows) > 0 {
			problems = append(problems, "failed record has a non-empty multi_year_data")
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return eris.Errorf("record: invalid %q: %s", r.Filename, strings.Join(problems, "; "))
	}
	return nil
}
