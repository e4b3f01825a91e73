// Package export renders extracted records as an XLSX workbook.
package export

import (
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fin-extract/internal/model"
)

// Sheet names.
const (
	SheetSummary  = "Сводка"
	SheetData     = "Показатели"
	SheetAnalysis = "Анализ"
)

var summaryHeader = []string{
	"Файл", "Успех", "Стратегия", "Источник", "Тип отчета", "Год", "Дата",
	"Организация", "ИНН", "КПП", "Ошибка", "Сообщение", "Предупреждения",
}

var dataHeader = []string{"Файл", "ИНН", "Раздел", "Ключ", "Показатель", "Год", "Значение"}

var analysisHeader = []string{
	"Файл", "Финансовое состояние", "Рейтинг", "Рекомендация",
	"Рост выручки", "Рентабельность", "ROA", "ROE", "Долг/Капитал", "Текущая ликвидность", "Быстрая ликвидность",
	"Сильные стороны", "Слабые стороны", "Риски", "Резюме",
}

var sectionNames = map[model.Section]string{
	model.SectionBalance:          "Баланс",
	model.SectionFinancialResults: "Финансовые результаты",
	model.SectionCashFlows:        "Движение денежных средств",
}

// Workbook builds the workbook: a summary row per record, the values in long
// format (one row per line item and year), and the delegated analysis when
// any record has one. Values stay in thousands of rubles as extracted.
func Workbook(records []model.Record) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := addSheet(f, SheetSummary, summaryHeader)
	if err != nil {
		return nil, err
	}
	data, err := addSheet(f, SheetData, dataHeader)
	if err != nil {
		return nil, err
	}

	var analysis *xlsx.Sheet
	for i := range records {
		r := &records[i]
		summaryRow(summary.AddRow(), r)
		dataRows(data, r)

		if r.Analysis == nil {
			continue
		}
		if analysis == nil {
			if analysis, err = addSheet(f, SheetAnalysis, analysisHeader); err != nil {
				return nil, err
			}
		}
		analysisRow(analysis.AddRow(), r)
	}
	return f, nil
}

// WriteFile saves the workbook for records to path.
func WriteFile(path string, records []model.Record) error {
	f, err := Workbook(records)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// Write streams the workbook for records to w.
func Write(w io.Writer, records []model.Record) error {
	f, err := Workbook(records)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write workbook")
}

func addSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		cell := row.AddCell()
		cell.SetString(h)
		style := cell.GetStyle()
		style.Font.Bold = true
		style.ApplyFont = true
	}
	return sheet, nil
}

func summaryRow(row *xlsx.Row, r *model.Record) {
	kind, msg := "", ""
	if r.Diagnostic != nil {
		kind, msg = string(r.Diagnostic.Kind), r.Diagnostic.Message
	}
	addStrings(row, r.Filename)
	row.AddCell().SetBool(r.Success)
	addStrings(row,
		string(r.Strategy),
		r.Source,
		r.ReportTypeLabel,
		r.ReportYear,
		r.ReportDate,
		r.CompanyInfo.Name,
		r.CompanyInfo.INN,
		r.CompanyInfo.KPP,
		kind,
		msg,
		strings.Join(r.Warnings, "; "),
	)
}

func dataRows(sheet *xlsx.Sheet, r *model.Record) {
	m := &r.MultiYearData
	sections := m.Sections()
	for _, sec := range []model.Section{model.SectionBalance, model.SectionFinancialResults, model.SectionCashFlows} {
		series := sections[sec]
		for _, key := range orderedKeys(sec, series) {
			for i, v := range series[key] {
				if v == nil || i >= len(m.Years) {
					continue
				}
				row := sheet.AddRow()
				addStrings(row, r.Filename, r.CompanyInfo.INN, sectionNames[sec], key, model.Label(key), m.Years[i])
				row.AddCell().SetFloat(*v)
			}
		}
	}
}

// orderedKeys returns catalog keys in presentation order, then any other
// keys alphabetically.
func orderedKeys(sec model.Section, series map[string]model.Series) []string {
	keys := make([]string, 0, len(series))
	seen := make(map[string]bool, len(series))
	for _, li := range model.CatalogSection(sec) {
		if _, ok := series[li.Key]; ok {
			keys = append(keys, li.Key)
			seen[li.Key] = true
		}
	}
	var extra []string
	for k := range series {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

func analysisRow(row *xlsx.Row, r *model.Record) {
	a := r.Analysis
	addStrings(row, r.Filename, a.FinancialHealth, a.InvestmentRating, a.InvestmentRecommendation)
	km := a.KeyMetrics
	for _, v := range []*float64{
		km.RevenueGrowth, km.ProfitMargin, km.ROA, km.ROE, km.DebtToEquity, km.CurrentRatio, km.QuickRatio,
	} {
		cell := row.AddCell()
		if v != nil {
			cell.SetFloat(*v)
		}
	}
	addStrings(row,
		strings.Join(a.Strengths, "\n"),
		strings.Join(a.Weaknesses, "\n"),
		strings.Join(a.Risks, "\n"),
		a.Summary,
	)
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
