package game

import (
	"strings"
	"testing"
)

func TestDefaultCatalogContents(t *testing.T) {
	c := DefaultCatalog()
	counts := []struct {
		name string
		got  int
		want int
	}{
		{name: "businesses", got: len(c.Businesses), want: 7},
		{name: "stocks", got: len(c.Stocks), want: 51},
		{name: "crypto", got: len(c.Crypto), want: 50},
		{name: "real estate", got: len(c.RealEstate), want: 4},
		{name: "cars", got: len(c.Cars), want: 4},
		{name: "collections", got: len(c.Collections), want: 4},
		{name: "tasks", got: len(c.Tasks), want: 15},
	}
	for _, tc := range counts {
		if tc.got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestNewStateDefaults(t *testing.T) {
	s := newTestState(t)
	if s.Balance != 1000 || s.ClickIncome != 1 || s.AutoIncomePerSecond != 0 {
		t.Fatalf("balance=%v click=%v income=%v", s.Balance, s.ClickIncome, s.AutoIncomePerSecond)
	}
	if s.SchemaVersion != CurrentSchemaVersion || s.LastSaveTime != testEpoch.UnixMilli() {
		t.Fatalf("version=%d saved=%d", s.SchemaVersion, s.LastSaveTime)
	}
	if s.Upgrades.ClickBoost.BaseCost != 50 || s.Upgrades.AutoClicker.IncomePerLevel != 0.5 {
		t.Fatalf("upgrades=%+v", s.Upgrades)
	}
	if b := s.business("manufacturing"); b == nil || b.Name != "Factory" || b.Icon != "fa-industry" {
		t.Fatalf("manufacturing=%+v", b)
	}
}

func TestNewStateStockSupply(t *testing.T) {
	s := DefaultCatalog().NewState(testEpoch, &seqRand{vals: []float64{0.75}})
	nexo := s.stock("NEXO")
	if nexo.TotalSupply != 5_000_000 || nexo.AvailableSupply != nexo.TotalSupply {
		t.Fatalf("nexo=%+v", nexo)
	}
	for _, st := range s.Investments.Stocks {
		if st.TotalSupply < 5_000_000 || st.TotalSupply >= 50_000_000 {
			t.Fatalf("%s supply %d outside [5M, 50M)", st.ID, st.TotalSupply)
		}
		if st.DividendPerShare != st.Price*DividendYield {
			t.Fatalf("%s dividend %v", st.ID, st.DividendPerShare)
		}
		if st.Industry == "" || len(st.History) != 1 {
			t.Fatalf("%s=%+v", st.ID, st)
		}
	}
	aapl := s.stock("AAPL")
	if aapl.TotalSupply != 38_750_000 {
		t.Fatalf("aapl supply %d", aapl.TotalSupply)
	}
}

func TestCryptoLogoURL(t *testing.T) {
	tests := []struct {
		id, name, want string
	}{
		{id: "BTC", name: "Bitcoin", want: "https://cryptologos.cc/logos/bitcoin-btc-logo.png"},
		{id: "SHIB", name: "Shiba Inu", want: "https://cryptologos.cc/logos/shiba-inu-shib-logo.png"},
		{id: "LEO", name: "UNUS SED LEO", want: "https://cryptologos.cc/logos/unus-sed leo-leo-logo.png"},
	}
	for _, tc := range tests {
		if got := cryptoLogoURL(tc.id, tc.name); got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}
}

func TestParseCatalogRejectsBrokenDocuments(t *testing.T) {
	docs := map[string]string{
		"not yaml":        "businesses: [",
		"missing upgrade": "upgrades: {click_boost: {base_cost: 1}}",
		"short crypto":    "upgrades: {click_boost: {}, auto_clicker_1: {}}\ncrypto: [{id: BTC, name: Bitcoin, price: 1}]",
	}
	for name, doc := range docs {
		if _, err := ParseCatalog([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	dup := strings.Replace(string(catalogYAML), `ticker: "AAPL"`, `ticker: "NEXO"`, 1)
	if _, err := ParseCatalog([]byte(dup)); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("duplicate ticker: got %v", err)
	}
}
