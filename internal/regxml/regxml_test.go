package regxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/fin-extract/internal/model"
)

const fullDoc = `<?xml version="1.0" encoding="windows-1251"?>
<Файл ИдФайл="NO_BOUPR_0000_0000_7701234567770101001_20240325_1" ВерсПрог="1.0" ВерсФорм="5.03">
  <Документ КНД="0710096" ДатаДок="25.03.2024" ОтчетГод="2023" Период="34">
    <СвНП ОКВЭД2="62.01" ОКОПФ="12300" ОКФС="16" ОКПО="12345678">
      <НПЮЛ НаимОрг="ООО &quot;Ромашка&quot;" ИННЮЛ="7701234567" КПП="770101001" АдрМН="г. Москва"/>
    </СвНП>
    <Подписант ПрПодп="1">
      <ФИО Фамилия="Иванов" Имя="Иван" Отчество="Иванович"/>
    </Подписант>
    <Баланс ОКУД="0710001">
      <Актив СумОтч="6047" СумПрдШв="5120" СумПрдЩ="4300">
        <МатВнеАкт СумОтч="1200" СумПрдШв="1100" СумПрдЩ="1000"/>
        <Запасы СумОтч="800" СумПрдШв="700"/>
        <ДенежнСр СумОтч="4047" СумПрдШв="3320" СумПрдЩ="3300"/>
      </Актив>
      <Пассив СумОтч="6047" СумПрдШв="5120" СумПрдЩ="4300">
        <КапРез СумОтч="5000" СумПрдШв="4000" СумПрдЩ="3500"/>
        <КредитЗадолж СумОтч="1047" СумПрдШв="1120" СумПрдЩ="800"/>
      </Пассив>
    </Баланс>
    <ФинРез ОКУД="0710002">
      <Выруч СумОтч="12000" СумПред="10000"/>
      <РасхОбДеят СумОтч="10500" СумПред="9000"/>
      <НалПрибДох СумОтч="300" СумПред="200"/>
      <ЧистПрибУб СумОтч="(150)" СумПред="800"/>
    </ФинРез>
  </Документ>
</Файл>`

const balanceOnlyDoc = `<?xml version="1.0" encoding="windows-1251"?>
<Файл>
  <Документ ОтчетГод="2022">
    <Баланс>
      <Актив СумОтч="100" СумПрдШв="90" СумПрдЩ="80">
        <ДенежнСр СумОтч="100" СумПрдШв="90" СумПрдЩ="80"/>
      </Актив>
    </Баланс>
  </Документ>
</Файл>`

func cp1251(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.Windows1251.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

func TestParse_FullDocument(t *testing.T) {
	p, err := Parse(cp1251(t, fullDoc))
	require.NoError(t, err)

	assert.Equal(t, "2023", p.Meta.ReportYear)
	assert.Equal(t, "25.03.2024", p.Meta.ReportDate)
	assert.Equal(t, FormCodeSimplified, p.Meta.FormCode)
	assert.True(t, p.Meta.Simplified)

	assert.Equal(t, `ООО "Ромашка"`, p.Company.Name)
	assert.Equal(t, "7701234567", p.Company.INN)
	assert.Equal(t, "770101001", p.Company.KPP)
	assert.Equal(t, "г. Москва", p.Company.Address)
	assert.Equal(t, "62.01", p.Company.OKVED)
	assert.Equal(t, "Иванов Иван Иванович", p.Company.Signatory)

	require.NotNil(t, p.Active)
	assert.InDelta(t, 6047, *p.Active.Total[0], 0)
	assert.InDelta(t, 4300, *p.Active.Total[2], 0)
	require.Len(t, p.Active.Lines, 3)
	assert.Equal(t, model.NonCurrentAssets, p.Active.Lines[0].Key)
	assert.Equal(t, model.Inventory, p.Active.Lines[1].Key)
	assert.Nil(t, p.Active.Lines[1].Values[2], "missing attribute stays null")

	require.NotNil(t, p.Passive)
	require.Len(t, p.Passive.Lines, 2)
	assert.Equal(t, model.AccountsPayable, p.Passive.Lines[1].Key)

	require.Len(t, p.Income, 4)
	assert.Equal(t, model.Revenue, p.Income[0].Key)
	assert.InDelta(t, 12000, *p.Income[0].Values[0], 0)
	assert.Equal(t, model.NetProfit, p.Income[3].Key)
	assert.InDelta(t, -150, *p.Income[3].Values[0], 0)
	assert.True(t, p.HasBalance())
	assert.True(t, p.HasIncome())
}

func TestParse_BalanceOnly(t *testing.T) {
	p, err := Parse(cp1251(t, balanceOnlyDoc))
	require.NoError(t, err)

	assert.True(t, p.HasBalance())
	assert.False(t, p.HasIncome())
	assert.Nil(t, p.Passive)
	assert.False(t, p.Meta.Simplified)
}

func TestParse_UndeclaredEncoding(t *testing.T) {
	doc := `<Файл><Документ ОтчетГод="2021"><ФинРез><Выруч СумОтч="5" СумПред="4"/></ФинРез></Документ></Файл>`
	p, err := Parse(cp1251(t, doc))
	require.NoError(t, err)
	assert.True(t, p.HasIncome())
	assert.False(t, p.HasBalance())
}

func TestParse_WrongEncodingIsDecodeFailure(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?><Файл/>`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Equal(t, model.ErrDecodeFailure, model.KindOf(err, model.ErrInternal))
}

func TestParse_UnknownEncodingIsDecodeFailure(t *testing.T) {
	_, err := Parse([]byte(`<?xml version="1.0" encoding="x-no-such"?><a/>`))
	require.Error(t, err)
	assert.Equal(t, model.ErrDecodeFailure, model.KindOf(err, model.ErrInternal))
}

func TestParse_ByteOutsideCodePage(t *testing.T) {
	data := append([]byte(`<?xml version="1.0" encoding="windows-1251"?><a>`), 0x98)
	data = append(data, []byte(`</a>`)...)
	_, err := Parse(data)
	require.Error(t, err)
	assert.Equal(t, model.ErrDecodeFailure, model.KindOf(err, model.ErrInternal))
}

func TestParse_MalformedIsParseError(t *testing.T) {
	_, err := Parse(cp1251(t, `<?xml version="1.0" encoding="windows-1251"?><Файл><Документ></Файл>`))
	require.Error(t, err)
	assert.Equal(t, model.ErrMarkupParse, model.KindOf(err, model.ErrInternal))
}

func TestParse_NoStatementsIsStructureAbsent(t *testing.T) {
	doc := `<?xml version="1.0" encoding="windows-1251"?><Файл><Документ ОтчетГод="2023"><СвНП><НПЮЛ ИННЮЛ="7701234567"/></СвНП></Документ></Файл>`
	p, err := Parse(cp1251(t, doc))
	require.Error(t, err)
	assert.Equal(t, model.ErrStructureAbsent, model.KindOf(err, model.ErrInternal))
	require.NotNil(t, p)
	assert.Equal(t, "7701234567", p.Company.INN)
}

func TestParse_EmptyBlocksAreStructureAbsent(t *testing.T) {
	doc := `<Файл><Баланс><Актив/></Баланс></Файл>`
	_, err := Parse(cp1251(t, doc))
	assert.Equal(t, model.ErrStructureAbsent, model.KindOf(err, model.ErrInternal))
}

func TestNodeFind(t *testing.T) {
	root, err := parseTree([]byte(`<a><b><c id="1"/></b><c id="2"/></a>`))
	require.NoError(t, err)

	c := root.find("c")
	require.NotNil(t, c)
	assert.Equal(t, "1", c.attr("id"))
	assert.Nil(t, root.find("missing"))
	assert.Nil(t, root.child("c"))
}
