package delegate

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tyler-sommer/stick"

	"github.com/sells-group/fin-extract/internal/model"
)

//go:embed prompt.twig
var promptTemplate string

// Prompt renders the extraction instruction for a document.
func Prompt(filename string) (string, error) {
	vars := map[string]stick.Value{
		"filename":          filename,
		"balance":           catalogLines(model.SectionBalance),
		"financial_results": catalogLines(model.SectionFinancialResults),
		"cash_flows":        catalogLines(model.SectionCashFlows),
	}

	var out strings.Builder
	if err := stick.New(nil).Execute(promptTemplate, &out, vars); err != nil {
		return "", eris.Wrap(err, "delegate: render prompt")
	}
	return out.String(), nil
}

func catalogLines(s model.Section) []string {
	items := model.CatalogSection(s)
	lines := make([]string, len(items))
	for i, li := range items {
		lines[i] = fmt.Sprintf("%s (%s)", li.Key, li.Label)
	}
	return lines
}
