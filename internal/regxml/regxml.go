// Package regxml reads the tax-service accounting statement schema
// (Бухгалтерская отчетность, windows-1251 XML) into typed balance and income blocks.
package regxml

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/numeric"
)

// FormCodeSimplified is the КНД of the simplified small-business form.
const FormCodeSimplified = "0710096"

// Balance columns: reporting date, 31 Dec of the previous year, 31 Dec of the year before.
var balanceColumns = [3]string{"СумОтч", "СумПрдШв", "СумПрдЩ"}

// Income columns: reporting period, same period of the previous year.
var incomeColumns = [2]string{"СумОтч", "СумПред"}

type field struct {
	tag string
	key string
}

var activeFields = []field{
	{"МатВнеАкт", model.NonCurrentAssets},
	{"ФинВлож", model.FinancialInvestments},
	{"Запасы", model.Inventory},
	{"ДенежнСр", model.Cash},
	{"НеМатФинАкт", model.IntangibleAssets},
}

var passiveFields = []field{
	{"КапРез", model.Equity},
	{"ДлгЗаемСредств", model.LongTermDebt},
	{"ДрДолгосрОбяз", model.OtherLongTermLiabilities},
	{"КредитЗадолж", model.AccountsPayable},
}

var incomeFields = []field{
	{"Выруч", model.Revenue},
	{"РасхОбДеят", model.Expenses},
	{"ПрочДоход", model.OtherIncome},
	{"ПрочРасход", model.OtherExpenses},
	{"НалПрибДох", model.IncomeTax},
	{"ЧистПрибУб", model.NetProfit},
}

// Parse decodes a windows-1251 registry document and extracts its header,
// filer identity, balance sheet and income statement. Missing nodes are
// skipped. A well-formed document with neither balance nor income values
// returns the partial payload together with a StructureAbsent error.
func Parse(data []byte) (*model.StructuredPayload, error) {
	utf8Data, err := decodeRegistry(data)
	if err != nil {
		return nil, err
	}
	root, err := parseTree(utf8Data)
	if err != nil {
		return nil, err
	}

	p := &model.StructuredPayload{}

	if doc := root.find("Документ"); doc != nil {
		p.Meta = model.DocumentMeta{
			ReportYear: doc.attr("ОтчетГод"),
			ReportDate: doc.attr("ДатаДок"),
			FormCode:   doc.attr("КНД"),
		}
		p.Meta.Simplified = p.Meta.FormCode == FormCodeSimplified
	}

	p.Company = company(root)

	if bal := root.find("Баланс"); bal != nil {
		if a := bal.find("Актив"); a != nil {
			p.Active = side(a, activeFields)
		}
		if ps := bal.find("Пассив"); ps != nil {
			p.Passive = side(ps, passiveFields)
		}
	}

	if fr := root.find("ФинРез"); fr != nil {
		p.Income = income(fr)
	}

	if !hasValue(p) {
		return p, model.NewKindError(model.ErrStructureAbsent, eris.New("regxml: no balance or income values in document"))
	}
	return p, nil
}

func company(root *node) model.CompanyInfo {
	var c model.CompanyInfo
	if np := root.find("СвНП"); np != nil {
		c.OKVED = np.attr("ОКВЭД2")
		c.OKOPF = np.attr("ОКОПФ")
		c.OKPO = np.attr("ОКПО")
		c.OKFS = np.attr("ОКФС")
	}
	if ul := root.find("НПЮЛ"); ul != nil {
		c.INN = ul.attr("ИННЮЛ")
		c.KPP = ul.attr("КПП")
		c.Name = ul.attr("НаимОрг")
		c.Address = ul.attr("АдрМН")
	}
	if sig := root.find("Подписант"); sig != nil {
		if fio := sig.find("ФИО"); fio != nil {
			parts := []string{fio.attr("Фамилия"), fio.attr("Имя"), fio.attr("Отчество")}
			c.Signatory = strings.Join(nonEmpty(parts), " ")
		}
	}
	return c
}

func side(n *node, fields []field) *model.BalanceSide {
	s := &model.BalanceSide{Total: triplet(n)}
	for _, f := range fields {
		if c := n.child(f.tag); c != nil {
			s.Lines = append(s.Lines, model.BalanceLine{Key: f.key, Values: triplet(c)})
		} else if c := n.find(f.tag); c != nil {
			s.Lines = append(s.Lines, model.BalanceLine{Key: f.key, Values: triplet(c)})
		}
	}
	return s
}

func income(n *node) []model.IncomeLine {
	lines := []model.IncomeLine{}
	for _, f := range incomeFields {
		if c := n.find(f.tag); c != nil {
			var v model.Pair
			for i, col := range incomeColumns {
				v[i] = numeric.Parse(c.attr(col))
			}
			lines = append(lines, model.IncomeLine{Key: f.key, Values: v})
		}
	}
	return lines
}

func triplet(n *node) model.Triplet {
	var t model.Triplet
	for i, col := range balanceColumns {
		t[i] = numeric.Parse(n.attr(col))
	}
	return t
}

func hasValue(p *model.StructuredPayload) bool {
	for _, s := range []*model.BalanceSide{p.Active, p.Passive} {
		if s == nil {
			continue
		}
		if tripletHasValue(s.Total) {
			return true
		}
		for _, l := range s.Lines {
			if tripletHasValue(l.Values) {
				return true
			}
		}
	}
	for _, l := range p.Income {
		if l.Values[0] != nil || l.Values[1] != nil {
			return true
		}
	}
	return false
}

func tripletHasValue(t model.Triplet) bool {
	return t[0] != nil || t[1] != nil || t[2] != nil
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
