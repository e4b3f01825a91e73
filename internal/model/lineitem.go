package model

// Section names a block of the multi-year matrix.
type Section string

const (
	SectionBalance          Section = "balance"
	SectionFinancialResults Section = "financial_results"
	SectionCashFlows        Section = "cash_flows"
)

// Canonical line-item keys.
const (
	TotalAssets              = "total_assets"
	NonCurrentAssets         = "non_current_assets"
	FinancialInvestments     = "financial_investments"
	Inventory                = "inventory"
	Cash                     = "cash"
	IntangibleAssets         = "intangible_assets"
	TotalLiabilities         = "total_liabilities"
	Equity                   = "equity"
	LongTermDebt             = "long_term_debt"
	OtherLongTermLiabilities = "other_long_term_liabilities"
	AccountsPayable          = "accounts_payable"
	Revenue                  = "revenue"
	Expenses                 = "expenses"
	OtherIncome              = "other_income"
	OtherExpenses            = "other_expenses"
	IncomeTax                = "income_tax"
	NetProfit                = "net_profit"
	OperatingCashFlow        = "operating_cash_flow"
	InvestingCashFlow        = "investing_cash_flow"
	FinancingCashFlow        = "financing_cash_flow"
	NetCashFlow              = "net_cash_flow"
)

// LineItem is one row of the catalog.
type LineItem struct {
	Key     string
	Label   string
	Section Section
}

// Catalog lists the canonical line items in presentation order.
var Catalog = []LineItem{
	{TotalAssets, "АКТИВ (всего)", SectionBalance},
	{NonCurrentAssets, "Внеоборотные активы", SectionBalance},
	{FinancialInvestments, "Финансовые вложения", SectionBalance},
	{Inventory, "Запасы", SectionBalance},
	{Cash, "Денежные средства", SectionBalance},
	{IntangibleAssets, "Нематериальные активы", SectionBalance},
	{TotalLiabilities, "ПАССИВ (всего)", SectionBalance},
	{Equity, "Капитал и резервы", SectionBalance},
	{LongTermDebt, "Долгосрочные заемные средства", SectionBalance},
	{OtherLongTermLiabilities, "Другие долгосрочные обязательства", SectionBalance},
	{AccountsPayable, "Кредиторская задолженность", SectionBalance},
	{Revenue, "Выручка", SectionFinancialResults},
	{Expenses, "Расходы по обычной деятельности", SectionFinancialResults},
	{OtherIncome, "Прочие доходы", SectionFinancialResults},
	{OtherExpenses, "Прочие расходы", SectionFinancialResults},
	{IncomeTax, "Налог на прибыль", SectionFinancialResults},
	{NetProfit, "Чистая прибыль (убыток)", SectionFinancialResults},
	{OperatingCashFlow, "Сальдо денежных потоков от текущих операций", SectionCashFlows},
	{InvestingCashFlow, "Сальдо денежных потоков от инвестиционных операций", SectionCashFlows},
	{FinancingCashFlow, "Сальдо денежных потоков от финансовых операций", SectionCashFlows},
	{NetCashFlow, "Сальдо денежных потоков за отчетный период", SectionCashFlows},
}

var catalogByKey = func() map[string]LineItem {
	m := make(map[string]LineItem, len(Catalog))
	for _, li := range Catalog {
		m[li.Key] = li
	}
	return m
}()

// Label returns the display label for key, or key itself when it is not in the catalog.
func Label(key string) string {
	if li, ok := catalogByKey[key]; ok {
		return li.Label
	}
	return key
}

// CatalogSection returns the catalog entries of one section in order.
func CatalogSection(s Section) []LineItem {
	var out []LineItem
	for _, li := range Catalog {
		if li.Section == s {
			out = append(out, li)
		}
	}
	return out
}

// KeyForLabel maps a display label back to its canonical key.
func KeyForLabel(label string) (string, bool) {
	for _, li := range Catalog {
		if li.Label == label {
			return li.Key, true
		}
	}
	return "", false
}
