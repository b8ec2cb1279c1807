package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// FallbackIndustry labels a stock the canonical catalog no longer knows about.
const FallbackIndustry = "Other"

// Loaded is a reconciled snapshot plus what the load did to it.
type Loaded struct {
	State           *GameState
	OfflineEarnings float64
	FromVersion     int
}

// loadedShape records which parts of a persisted document were actually
// present, as opposed to filled in from canonical defaults.
type loadedShape struct {
	hasLastSave bool
	cryptoLen   int
}

// mergeRule is one step of the versioned merge, applied after the top-level
// overlay. Rules run in order and must be idempotent.
type mergeRule struct {
	name  string
	apply func(s, canonical *GameState, shape loadedShape)
}

var mergeRules = []mergeRule{
	{name: "stock_industry", apply: patchStockIndustry},
	{name: "business_display", apply: syncBusinessDisplay},
	{name: "inject_stocks", apply: injectCanonicalStocks},
	{name: "crypto_catalog", apply: replaceShortCryptoCatalog},
	{name: "supply_bounds", apply: clampStockSupply},
	{name: "history_window", apply: trimHistories},
}

// Reconcile rebuilds a persisted snapshot on top of canonical and credits
// income earned while the game was closed. canonical is not modified.
func Reconcile(raw []byte, canonical *GameState, now time.Time) (Loaded, error) {
	return reconcile(raw, canonical, now, true)
}

func reconcile(raw []byte, canonical *GameState, now time.Time, creditOffline bool) (Loaded, error) {
	s, shape, err := overlay(raw, canonical)
	if err != nil {
		return Loaded{}, err
	}
	out := Loaded{FromVersion: s.SchemaVersion}

	// Offline income is priced on the holdings as saved, before any catalog
	// patch can change them.
	if creditOffline && shape.hasLastSave && s.LastSaveTime > 0 {
		elapsed := float64(now.UnixMilli()-s.LastSaveTime) / 1000
		if elapsed > 1 {
			if earnings := elapsed * ComputeIncome(s); earnings > 0 {
				s.Balance += earnings
				out.OfflineEarnings = earnings
			}
		}
	}

	for _, rule := range mergeRules {
		rule.apply(s, canonical, shape)
	}
	s.SchemaVersion = CurrentSchemaVersion
	s.AutoIncomePerSecond = ComputeIncome(s)
	evaluateTasks(s)
	out.State = s
	return out, nil
}

// overlay decodes raw over a copy of canonical. Every key present in raw
// replaces the canonical value wholesale; absent keys keep the default.
// Upgrades and investments are overlaid one level deeper so a save that
// predates one of their members still gets it.
func overlay(raw []byte, canonical *GameState) (*GameState, loadedShape, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, loadedShape{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if top == nil {
		return nil, loadedShape{}, fmt.Errorf("%w: empty document", ErrInvalidImport)
	}

	s := canonical.Clone()
	s.SchemaVersion = 0
	shape := loadedShape{cryptoLen: len(canonical.Investments.Crypto)}

	var err error
	for key, val := range top {
		switch key {
		case "schemaVersion":
			err = replace(val, &s.SchemaVersion)
		case "balance":
			err = replace(val, &s.Balance)
		case "clickIncome":
			err = replace(val, &s.ClickIncome)
		case "autoIncomePerSecond":
			err = replace(val, &s.AutoIncomePerSecond)
		case "lastSaveTime":
			shape.hasLastSave = true
			err = replace(val, &s.LastSaveTime)
		case "upgrades":
			err = overlayUpgrades(val, &s.Upgrades)
		case "businesses":
			err = replace(val, &s.Businesses)
		case "investments":
			err = overlayInvestments(val, &s.Investments, &shape)
		case "collections":
			err = replace(val, &s.Collections)
		case "tasks":
			err = replace(val, &s.Tasks)
		}
		if err != nil {
			return nil, loadedShape{}, fmt.Errorf("%w: field %s: %v", ErrInvalidImport, key, err)
		}
	}
	return s, shape, nil
}

func overlayUpgrades(raw json.RawMessage, u *Upgrades) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return err
	}
	for id, val := range members {
		dst := u.Get(id)
		if dst == nil {
			continue
		}
		if err := replace(val, dst); err != nil {
			return err
		}
	}
	return nil
}

func overlayInvestments(raw json.RawMessage, inv *Investments, shape *loadedShape) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return err
	}
	var err error
	for key, val := range members {
		switch key {
		case "stocks":
			err = replace(val, &inv.Stocks)
		case "realEstate":
			err = replace(val, &inv.RealEstate)
		case "crypto":
			err = replace(val, &inv.Crypto)
			shape.cryptoLen = len(inv.Crypto)
		case "cars":
			err = replace(val, &inv.Cars)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// replace decodes raw into a zero T and only then stores it, so decoding
// never merges into the default value already held by dst.
func replace[T any](raw json.RawMessage, dst *T) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

func patchStockIndustry(s, canonical *GameState, _ loadedShape) {
	for i := range s.Investments.Stocks {
		st := &s.Investments.Stocks[i]
		if st.Industry != "" {
			continue
		}
		if def := canonical.stock(st.ID); def != nil && def.Industry != "" {
			st.Industry = def.Industry
		} else {
			st.Industry = FallbackIndustry
		}
	}
}

func syncBusinessDisplay(s, canonical *GameState, _ loadedShape) {
	for i := range s.Businesses {
		b := &s.Businesses[i]
		if def := canonical.business(b.ID); def != nil {
			b.Icon = def.Icon
			b.Color = def.Color
		}
	}
}

// injectCanonicalStocks puts every catalog stock the save lacks in front of
// the loaded list, keeping catalog order among the new ones.
func injectCanonicalStocks(s, canonical *GameState, _ loadedShape) {
	var missing []Stock
	for _, def := range canonical.Investments.Stocks {
		if s.stock(def.ID) == nil {
			def.History = append([]float64(nil), def.History...)
			missing = append(missing, def)
		}
	}
	if len(missing) == 0 {
		return
	}
	s.Investments.Stocks = append(missing, s.Investments.Stocks...)
}

func replaceShortCryptoCatalog(s, canonical *GameState, shape loadedShape) {
	if shape.cryptoLen >= MinCryptoCatalogSize {
		return
	}
	s.Investments.Crypto = canonical.Clone().Investments.Crypto
}

func clampStockSupply(s, _ *GameState, _ loadedShape) {
	for i := range s.Investments.Stocks {
		st := &s.Investments.Stocks[i]
		if st.TotalSupply < 0 {
			st.TotalSupply = 0
		}
		if st.AvailableSupply < 0 {
			st.AvailableSupply = 0
		}
		if st.AvailableSupply > st.TotalSupply {
			st.AvailableSupply = st.TotalSupply
		}
	}
}

func trimHistories(s, _ *GameState, _ loadedShape) {
	for i := range s.Investments.Stocks {
		st := &s.Investments.Stocks[i]
		st.History = trimWindow(st.History)
	}
	for i := range s.Investments.Crypto {
		c := &s.Investments.Crypto[i]
		c.History = trimWindow(c.History)
	}
}

func trimWindow(history []float64) []float64 {
	if over := len(history) - HistoryWindow; over > 0 {
		return append([]float64(nil), history[over:]...)
	}
	return history
}
