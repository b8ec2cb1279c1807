package game

import (
	"errors"
	"math"
	"testing"
)

func mustApply(t *testing.T, s *GameState, tx Tx) *GameState {
	t.Helper()
	next, err := Apply(s, tx)
	if err != nil {
		t.Fatalf("%s: %v", tx.Kind, err)
	}
	return next
}

func TestBuyBusinessRetailScenario(t *testing.T) {
	s := newTestState(t)
	if got := BusinessCost(s.business("retail").BaseCost, s.business("retail").Level, 0); got != 1000 {
		t.Fatalf("first retail level costs %v", got)
	}

	next := mustApply(t, s, BuyBusiness("retail", false))
	b := next.business("retail")
	if next.Balance != 0 || b.Level != 1 {
		t.Fatalf("balance=%v level=%d", next.Balance, b.Level)
	}
	if got := BusinessCost(b.BaseCost, b.Level, 0); math.Abs(got-1150) > 1e-9 {
		t.Fatalf("next cost %v want 1150", got)
	}
	if next.AutoIncomePerSecond != 2 {
		t.Fatalf("income not recomputed: %v", next.AutoIncomePerSecond)
	}
	if s.Balance != 1000 || s.business("retail").Level != 0 {
		t.Fatalf("purchase leaked into the previous snapshot")
	}
}

func TestUnaffordablePurchaseLeavesStateUntouched(t *testing.T) {
	s := newTestState(t)
	txs := []Tx{
		BuyBusiness("mining", false),
		BuyBusiness("mining", true),
		BuyRealEstate("skyscraper"),
		BuyCar("bugatti_chiron"),
		BuyCollection("nft", false),
		BuyStock("AAPL", 100),
		BuyCrypto("BTC", 1),
	}
	for _, tx := range txs {
		next, err := Apply(s, tx)
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("%s: got %v", tx.Kind, err)
		}
		if next != s {
			t.Fatalf("%s: failed transaction must return the original snapshot", tx.Kind)
		}
	}
}

func TestUnknownEntity(t *testing.T) {
	s := newTestState(t)
	for _, tx := range []Tx{BuyBusiness("x", false), BuyUpgrade("x", false), SellStock("ZZZZ", 1), ClaimTask("nope")} {
		if _, err := Apply(s, tx); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: got %v", tx.Kind, err)
		}
	}
}

func TestBuyMaxPricesEachLevel(t *testing.T) {
	s := newTestState(t)
	s.Balance = 1000 + 1150 + 1322.5 + 100

	next := mustApply(t, s, BuyBusiness("retail", true))
	if lvl := next.business("retail").Level; lvl != 3 {
		t.Fatalf("level=%d want 3", lvl)
	}
	if math.Abs(next.Balance-100) > 1e-6 {
		t.Fatalf("balance=%v want 100", next.Balance)
	}
}

func TestClickBoostRaisesClickIncome(t *testing.T) {
	s := newTestState(t)
	next := mustApply(t, s, BuyUpgrade(UpgradeClickBoost, false))
	if next.ClickIncome != 2 || next.Balance != 950 {
		t.Fatalf("click=%v balance=%v", next.ClickIncome, next.Balance)
	}

	next = mustApply(t, next, BuyUpgrade(UpgradeAutoClicker, false))
	if next.AutoIncomePerSecond != 0.5 {
		t.Fatalf("auto clicker income=%v", next.AutoIncomePerSecond)
	}
}

func TestCollectionStopsAtMaxLevel(t *testing.T) {
	s := newTestState(t)
	s.Balance = 1e9

	next := mustApply(t, s, BuyCollection("stamps", true))
	c := next.collection("stamps")
	if c.Level != c.MaxLevel {
		t.Fatalf("level=%d max=%d", c.Level, c.MaxLevel)
	}
	spent := s.Balance - next.Balance
	if math.Abs(spent-CollectionCumulativeValue(c.BaseCost, c.MaxLevel)) > 1e-6 {
		t.Fatalf("spent %v", spent)
	}
	if math.Abs(next.AutoIncomePerSecond-CollectionBonus(*c)) > 1e-9 {
		t.Fatalf("maxed collection bonus missing: %v", next.AutoIncomePerSecond)
	}
	if _, err := Apply(next, BuyCollection("stamps", false)); !errors.Is(err, ErrMaxLevel) {
		t.Fatalf("got %v", err)
	}
}

func TestBuyStockSupplyScenario(t *testing.T) {
	s := &GameState{
		Balance: 1000,
		Investments: Investments{Stocks: []Stock{{
			ID: "NEXO", Price: 5, DividendPerShare: 0.025,
			TotalSupply: 5_000_000, AvailableSupply: 5_000_000,
		}}},
	}
	next := mustApply(t, s, BuyStock("NEXO", 100))
	st := next.stock("NEXO")
	if st.Shares != 100 || st.AvailableSupply != 4_999_900 || next.Balance != 500 {
		t.Fatalf("shares=%d available=%d balance=%v", st.Shares, st.AvailableSupply, next.Balance)
	}
	if next.AutoIncomePerSecond != 2.5 {
		t.Fatalf("dividends not counted: %v", next.AutoIncomePerSecond)
	}
}

func TestBuySellAreInverse(t *testing.T) {
	s := newTestState(t)
	s.Balance = 50_000
	before := *s.stock("AAPL")

	bought := mustApply(t, s, BuyStock("AAPL", 100))
	sold := mustApply(t, bought, SellStock("AAPL", 100))

	after := sold.stock("AAPL")
	if after.Shares != before.Shares || after.AvailableSupply != before.AvailableSupply {
		t.Fatalf("holdings not restored: %+v", after)
	}
	if sold.Balance != s.Balance {
		t.Fatalf("balance %v want %v", sold.Balance, s.Balance)
	}
}

func TestStockSupplyAndShareLimits(t *testing.T) {
	s := &GameState{
		Balance:     1e9,
		Investments: Investments{Stocks: []Stock{{ID: "TINY", Price: 1, TotalSupply: 10, AvailableSupply: 10}}},
	}
	if _, err := Apply(s, BuyStock("TINY", 11)); !errors.Is(err, ErrInsufficientSupply) {
		t.Fatalf("got %v", err)
	}
	if _, err := Apply(s, SellStock("TINY", 1)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("got %v", err)
	}
	if _, err := Apply(s, BuyStock("TINY", 0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("got %v", err)
	}

	next := mustApply(t, s, BuyStock("TINY", 10))
	st := next.stock("TINY")
	if st.AvailableSupply != 0 || st.Shares != 10 {
		t.Fatalf("%+v", st)
	}
}

func TestLiquidateMatchesSequentialSells(t *testing.T) {
	s := newTestState(t)
	s.Balance = 1e6
	s = mustApply(t, s, BuyStock("AAPL", 10))
	s = mustApply(t, s, BuyStock("MSFT", 7))
	s = mustApply(t, s, BuyStock("NEXO", 300))

	liquidated := mustApply(t, s, LiquidateStocks())

	forward := s
	for _, id := range []string{"AAPL", "MSFT", "NEXO"} {
		forward = mustApply(t, forward, SellStock(id, forward.stock(id).Shares))
	}
	backward := s
	for _, id := range []string{"NEXO", "MSFT", "AAPL"} {
		backward = mustApply(t, backward, SellStock(id, backward.stock(id).Shares))
	}

	for _, other := range []*GameState{forward, backward} {
		if math.Abs(other.Balance-liquidated.Balance) > 1e-6 {
			t.Fatalf("balance %v vs liquidate %v", other.Balance, liquidated.Balance)
		}
		for i, st := range liquidated.Investments.Stocks {
			o := other.Investments.Stocks[i]
			if st.Shares != 0 || o.Shares != 0 || st.AvailableSupply != o.AvailableSupply {
				t.Fatalf("%s: %+v vs %+v", st.ID, st, o)
			}
		}
	}
	if liquidated.AutoIncomePerSecond != 0 {
		t.Fatalf("dividends left after liquidation: %v", liquidated.AutoIncomePerSecond)
	}

	if _, err := Apply(liquidated, LiquidateStocks()); !errors.Is(err, ErrNothingOwned) {
		t.Fatalf("got %v", err)
	}
}

func TestLaunchIPORejectsExistingTickerWithoutCharging(t *testing.T) {
	s := newTestState(t)
	s.Balance = 2_000_000

	next, err := Apply(s, LaunchIPO(IPOInput{Name: "Apple Two", Ticker: "aapl", Price: 10, Supply: 5_000_000}))
	if !errors.Is(err, ErrTickerTaken) {
		t.Fatalf("got %v", err)
	}
	if next != s || s.Balance != 2_000_000 {
		t.Fatalf("rejected IPO charged the player: %v", next.Balance)
	}
}

func TestLaunchIPO(t *testing.T) {
	s := newTestState(t)
	s.Balance = 1_500_000
	in := IPOInput{Name: " Acme Labs ", Ticker: "acme", Price: 20, Supply: 6_000_000}

	next := mustApply(t, s, LaunchIPO(in))
	st := next.Investments.Stocks[0]
	if st.ID != "ACME" || st.Name != "Acme Labs" || st.Industry != IPODefaultSector {
		t.Fatalf("listing=%+v", st)
	}
	if st.Shares != 6_000_000 || st.AvailableSupply != 0 || st.TotalSupply != 6_000_000 {
		t.Fatalf("ownership=%+v", st)
	}
	if math.Abs(st.DividendPerShare-0.1) > 1e-12 || len(st.History) != 1 || st.History[0] != 20 {
		t.Fatalf("pricing=%+v", st)
	}
	if next.Balance != 500_000 {
		t.Fatalf("balance=%v", next.Balance)
	}
	if len(next.Investments.Stocks) != len(s.Investments.Stocks)+1 {
		t.Fatalf("stock count %d", len(next.Investments.Stocks))
	}
	if math.Abs(next.AutoIncomePerSecond-600_000) > 1e-6 {
		t.Fatalf("income=%v", next.AutoIncomePerSecond)
	}
}

func TestIPOInputValidate(t *testing.T) {
	ok := IPOInput{Name: "Acme", Ticker: "ACME", Price: 1, Supply: IPOMinSupply}
	tests := []struct {
		name string
		mut  func(*IPOInput)
		want error
	}{
		{name: "ok", mut: func(*IPOInput) {}},
		{name: "blank name", mut: func(in *IPOInput) { in.Name = "  " }, want: ErrInvalidIPO},
		{name: "long name", mut: func(in *IPOInput) { in.Name = "A Very Long Company Name" }, want: ErrNameTooLong},
		{name: "long ticker", mut: func(in *IPOInput) { in.Ticker = "ABCDEF" }, want: ErrTickerTooLong},
		{name: "dashed ticker", mut: func(in *IPOInput) { in.Ticker = "my-c" }},
		{name: "bad ticker", mut: func(in *IPOInput) { in.Ticker = "A/B" }, want: ErrInvalidIPO},
		{name: "zero price", mut: func(in *IPOInput) { in.Price = 0 }, want: ErrInvalidIPO},
		{name: "small float", mut: func(in *IPOInput) { in.Supply = IPOMinSupply - 1 }, want: ErrInvalidIPO},
		{name: "large float", mut: func(in *IPOInput) { in.Supply = IPOMaxSupply + 1 }, want: ErrInvalidIPO},
	}
	for _, tc := range tests {
		in := ok
		tc.mut(&in)
		err := in.Validate()
		if tc.want == nil && err != nil {
			t.Fatalf("%s: unexpected %v", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
}

func TestLaunchIPONeedsListingFee(t *testing.T) {
	s := newTestState(t)
	s.Balance = IPOListingFee - 1
	_, err := Apply(s, LaunchIPO(IPOInput{Name: "Acme", Ticker: "ACME", Price: 1, Supply: IPOMinSupply}))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v", err)
	}
}

func TestCryptoTradesFractionalUnits(t *testing.T) {
	s := newTestState(t)
	s.Balance = 1000

	next := mustApply(t, s, BuyCrypto("BTC", 0.01))
	if math.Abs(next.Balance-350) > 1e-9 || next.crypto("BTC").Owned != 0.01 {
		t.Fatalf("balance=%v owned=%v", next.Balance, next.crypto("BTC").Owned)
	}
	if _, err := Apply(next, SellCrypto("BTC", 0.02)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("got %v", err)
	}
	next = mustApply(t, next, SellCrypto("BTC", 0.01))
	if math.Abs(next.Balance-1000) > 1e-9 {
		t.Fatalf("balance=%v", next.Balance)
	}
}

func TestSellCarAtAppreciatedValue(t *testing.T) {
	s := newTestState(t)
	s.Balance = 140_000

	s = mustApply(t, s, BuyCar("bmw_m5"))
	if s.Balance != 0 {
		t.Fatalf("balance=%v", s.Balance)
	}
	s = mustApply(t, s, MarketTick(&seqRand{vals: []float64{0.5}}))
	s = mustApply(t, s, SellCar("bmw_m5"))
	if s.Balance != 140_050 || s.car("bmw_m5").Owned != 0 {
		t.Fatalf("balance=%v owned=%d", s.Balance, s.car("bmw_m5").Owned)
	}
	if _, err := Apply(s, SellCar("bmw_m5")); !errors.Is(err, ErrNothingOwned) {
		t.Fatalf("got %v", err)
	}
}

func TestRealEstatePaysRent(t *testing.T) {
	s := newTestState(t)
	s.Balance = 30_000
	s = mustApply(t, s, BuyRealEstate("apartment"))
	s = mustApply(t, s, BuyRealEstate("apartment"))
	if s.estate("apartment").Owned != 2 || s.AutoIncomePerSecond != 30 {
		t.Fatalf("owned=%d income=%v", s.estate("apartment").Owned, s.AutoIncomePerSecond)
	}
}

func TestBalanceOnlyTransactionsKeepCachedIncome(t *testing.T) {
	s := newTestState(t)
	s.AutoIncomePerSecond = 5

	next := mustApply(t, s, IncomeTick())
	if next.Balance != s.Balance+5 || next.AutoIncomePerSecond != 5 {
		t.Fatalf("balance=%v income=%v", next.Balance, next.AutoIncomePerSecond)
	}
	next = mustApply(t, next, Credit(3))
	if next.AutoIncomePerSecond != 5 {
		t.Fatalf("credit recomputed income")
	}
	if _, err := Apply(next, Credit(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("got %v", err)
	}
}

func TestStampSave(t *testing.T) {
	s := newTestState(t)
	next := mustApply(t, s, StampSave(42))
	if next.LastSaveTime != 42 || next.Balance != s.Balance {
		t.Fatalf("%+v", next.LastSaveTime)
	}
}

func TestErrorsCarryKind(t *testing.T) {
	s := newTestState(t)
	_, err := Apply(s, BuyRealEstate("skyscraper"))
	if err == nil || err.Error() != "buy_real_estate: insufficient funds" {
		t.Fatalf("got %v", err)
	}
}
