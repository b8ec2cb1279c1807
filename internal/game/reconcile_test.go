package game

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func encodeOrFail(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestReconcileCreditsOfflineEarnings(t *testing.T) {
	canonical := newTestState(t)
	saved := canonical.Clone()
	saved.Upgrades.AutoClicker.Level = 10
	saved.AutoIncomePerSecond = 5
	saved.LastSaveTime = testEpoch.UnixMilli()

	now := testEpoch.Add(120 * time.Second)
	loaded, err := Reconcile(encodeOrFail(t, saved), canonical, now)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if math.Abs(loaded.OfflineEarnings-600) > 1e-9 {
		t.Fatalf("offline earnings=%v want 600", loaded.OfflineEarnings)
	}
	if math.Abs(loaded.State.Balance-(saved.Balance+600)) > 1e-9 {
		t.Fatalf("balance=%v", loaded.State.Balance)
	}
	if loaded.State.AutoIncomePerSecond != 5 {
		t.Fatalf("income=%v", loaded.State.AutoIncomePerSecond)
	}
}

func TestReconcileSkipsShortGaps(t *testing.T) {
	canonical := newTestState(t)
	saved := canonical.Clone()
	saved.Upgrades.AutoClicker.Level = 10
	saved.LastSaveTime = testEpoch.UnixMilli()

	loaded, err := Reconcile(encodeOrFail(t, saved), canonical, testEpoch.Add(time.Second))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if loaded.OfflineEarnings != 0 || loaded.State.Balance != saved.Balance {
		t.Fatalf("credited %v for a one second gap", loaded.OfflineEarnings)
	}
}

func TestReconcileWithoutSaveTimeCreditsNothing(t *testing.T) {
	canonical := newTestState(t)
	raw := []byte(`{"balance": 10, "businesses": [{"id":"retail","level":3}], "upgrades": {"auto_clicker_1": {"level": 2, "baseCost": 200, "incomePerLevel": 0.5}}}`)

	loaded, err := Reconcile(raw, canonical, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if loaded.OfflineEarnings != 0 || loaded.State.Balance != 10 {
		t.Fatalf("earnings=%v balance=%v", loaded.OfflineEarnings, loaded.State.Balance)
	}
	// Absent upgrades keep their canonical definition.
	if loaded.State.Upgrades.ClickBoost != canonical.Upgrades.ClickBoost {
		t.Fatalf("click boost=%+v", loaded.State.Upgrades.ClickBoost)
	}
	if loaded.State.Upgrades.AutoClicker.Level != 2 {
		t.Fatalf("auto clicker=%+v", loaded.State.Upgrades.AutoClicker)
	}
	// Businesses replace the canonical list wholesale.
	if len(loaded.State.Businesses) != 1 || loaded.State.Businesses[0].Level != 3 {
		t.Fatalf("businesses=%+v", loaded.State.Businesses)
	}
	if loaded.State.AutoIncomePerSecond != 1 {
		t.Fatalf("income=%v", loaded.State.AutoIncomePerSecond)
	}
}

func TestReconcilePatchesOldSave(t *testing.T) {
	canonical := newTestState(t)
	history := make([]float64, 80)
	for i := range history {
		history[i] = float64(i)
	}
	raw := encodeOrFail(t, map[string]any{
		"balance":      25_000.0,
		"lastSaveTime": testEpoch.UnixMilli(),
		"businesses": []map[string]any{
			{"id": "retail", "name": "Retail Store", "level": 2, "baseCost": 1000, "baseIncome": 2, "icon": "fa-store-old"},
		},
		"investments": map[string]any{
			"stocks": []map[string]any{
				{"id": "AAPL", "name": "Apple", "shares": 5, "price": 190, "history": history, "totalSupply": 100, "availableSupply": 95},
				{"id": "OLDCO", "name": "Old Co", "shares": 0, "price": 3, "history": []float64{3}, "totalSupply": 10, "availableSupply": 40},
			},
			"crypto": []map[string]any{
				{"id": "BTC", "name": "Bitcoin", "owned": 1, "price": 50_000, "history": []float64{50_000}},
			},
		},
		"tasks": []map[string]any{
			{"id": "task6", "type": "balance", "goal": 10_000, "reward": 1000},
		},
	})

	loaded, err := Reconcile(raw, canonical, testEpoch)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	s := loaded.State

	if loaded.FromVersion != 0 || s.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("from=%d now=%d", loaded.FromVersion, s.SchemaVersion)
	}

	retail := s.business("retail")
	if retail.Icon != "fa-shop" || retail.Color != "text-orange-400" || retail.Level != 2 {
		t.Fatalf("retail=%+v", retail)
	}

	aapl := s.stock("AAPL")
	if aapl.Industry != "Technology" || aapl.Shares != 5 || aapl.Price != 190 {
		t.Fatalf("aapl=%+v", aapl)
	}
	if len(aapl.History) != HistoryWindow || aapl.History[HistoryWindow-1] != 79 {
		t.Fatalf("history len=%d", len(aapl.History))
	}
	old := s.stock("OLDCO")
	if old.Industry != FallbackIndustry || old.AvailableSupply != old.TotalSupply {
		t.Fatalf("oldco=%+v", old)
	}

	if len(s.Investments.Stocks) != len(canonical.Investments.Stocks)+1 {
		t.Fatalf("stocks=%d", len(s.Investments.Stocks))
	}
	if s.Investments.Stocks[0].ID != "NEXO" {
		t.Fatalf("injected stocks should lead, got %s", s.Investments.Stocks[0].ID)
	}
	n := len(s.Investments.Stocks)
	if s.Investments.Stocks[n-2].ID != "AAPL" || s.Investments.Stocks[n-1].ID != "OLDCO" {
		t.Fatalf("loaded stocks should trail in saved order")
	}

	if len(s.Investments.Crypto) != len(canonical.Investments.Crypto) || s.crypto("BTC").Owned != 0 {
		t.Fatalf("short crypto catalog should be replaced")
	}
	if len(s.Investments.RealEstate) != len(canonical.Investments.RealEstate) {
		t.Fatalf("absent realEstate should keep canonical entries")
	}

	if len(s.Tasks) != 1 || !s.Tasks[0].IsCompleted {
		t.Fatalf("tasks=%+v", s.Tasks)
	}
	if s.AutoIncomePerSecond != ComputeIncome(s) {
		t.Fatalf("income cache stale")
	}
}

func TestReconcileKeepsFullCryptoCatalog(t *testing.T) {
	canonical := newTestState(t)
	saved := canonical.Clone()
	saved.Investments.Crypto[0].Owned = 2.5
	saved.Investments.Crypto = saved.Investments.Crypto[:MinCryptoCatalogSize]

	loaded, err := Reconcile(encodeOrFail(t, saved), canonical, testEpoch)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(loaded.State.Investments.Crypto) != MinCryptoCatalogSize {
		t.Fatalf("crypto=%d", len(loaded.State.Investments.Crypto))
	}
	if loaded.State.Investments.Crypto[0].Owned != 2.5 {
		t.Fatalf("holdings lost")
	}
}

func TestReconcileLeavesCanonicalAlone(t *testing.T) {
	canonical := newTestState(t)
	before := canonical.Clone()
	raw := []byte(`{"balance": 5, "businesses": [], "investments": {"stocks": []}}`)

	loaded, err := Reconcile(raw, canonical, testEpoch)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	loaded.State.Investments.Stocks[0].History[0] = -1
	if !reflect.DeepEqual(before, canonical) {
		t.Fatalf("canonical snapshot was modified")
	}
}

func TestReconcileRejectsMalformed(t *testing.T) {
	canonical := newTestState(t)
	for _, raw := range []string{``, `nope`, `null`, `[1,2]`, `{"balance": "lots"}`, `{"investments": {"stocks": 3}}`} {
		if _, err := Reconcile([]byte(raw), canonical, testEpoch); !errors.Is(err, ErrInvalidImport) {
			t.Fatalf("%q: got %v", raw, err)
		}
	}
}

func TestReconcileRoundTripsFreshSave(t *testing.T) {
	canonical := newTestState(t)
	raw, err := Encode(canonical)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	loaded, err := Reconcile(raw, canonical, testEpoch)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !reflect.DeepEqual(loaded.State, canonical) {
		t.Fatalf("fresh save did not survive a load")
	}
}
