package game

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

const (
	stockSupplyFloor = 5_000_000
	stockSupplySpan  = 45_000_000
)

// Catalog is the canonical default content every save is built from.
type Catalog struct {
	StartingBalance float64                   `yaml:"starting_balance"`
	ClickIncome     float64                   `yaml:"click_income"`
	Upgrades        map[string]catalogUpgrade `yaml:"upgrades"`
	Businesses      []catalogBusiness         `yaml:"businesses"`
	Stocks          []catalogStock            `yaml:"stocks"`
	Crypto          []catalogCrypto           `yaml:"crypto"`
	RealEstate      []catalogEstate           `yaml:"real_estate"`
	Cars            []catalogCar              `yaml:"cars"`
	Collections     []catalogCollection       `yaml:"collections"`
	Tasks           []catalogTask             `yaml:"tasks"`
}

type catalogUpgrade struct {
	Level          int64   `yaml:"level"`
	BaseCost       float64 `yaml:"base_cost"`
	IncomePerLevel float64 `yaml:"income_per_level"`
}

type catalogBusiness struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	BaseCost   float64 `yaml:"base_cost"`
	BaseIncome float64 `yaml:"base_income"`
	Icon       string  `yaml:"icon"`
	Color      string  `yaml:"color"`
}

type catalogStock struct {
	Ticker   string  `yaml:"ticker"`
	Name     string  `yaml:"name"`
	Domain   string  `yaml:"domain"`
	Price    float64 `yaml:"price"`
	Supply   int64   `yaml:"supply"`
	Industry string  `yaml:"industry"`
}

type catalogCrypto struct {
	ID    string  `yaml:"id"`
	Name  string  `yaml:"name"`
	Price float64 `yaml:"price"`
}

type catalogEstate struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Cost         float64 `yaml:"cost"`
	RentalIncome float64 `yaml:"rental_income"`
	ImageURL     string  `yaml:"image_url"`
}

type catalogCar struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Cost         float64 `yaml:"cost"`
	Appreciation float64 `yaml:"appreciation"`
	ImageURL     string  `yaml:"image_url"`
}

type catalogCollection struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	MaxLevel int64   `yaml:"max_level"`
	BaseCost float64 `yaml:"base_cost"`
	Icon     string  `yaml:"icon"`
}

type catalogTask struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Type        TaskType `yaml:"type"`
	Target      string   `yaml:"target"`
	Goal        float64  `yaml:"goal"`
	Reward      float64  `yaml:"reward"`
}

// ParseCatalog decodes and checks a catalog document.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	for _, id := range []string{UpgradeClickBoost, UpgradeAutoClicker} {
		if _, ok := c.Upgrades[id]; !ok {
			return fmt.Errorf("catalog: missing upgrade %q", id)
		}
	}
	seen := make(map[string]bool, len(c.Stocks))
	for _, st := range c.Stocks {
		if err := ValidateTicker(st.Ticker); err != nil {
			return fmt.Errorf("catalog: stock %q: %w", st.Ticker, err)
		}
		if seen[st.Ticker] {
			return fmt.Errorf("catalog: duplicate ticker %q", st.Ticker)
		}
		seen[st.Ticker] = true
		if st.Price <= 0 {
			return fmt.Errorf("catalog: stock %q has no price", st.Ticker)
		}
	}
	if len(c.Crypto) < MinCryptoCatalogSize {
		return fmt.Errorf("catalog: %d crypto entries, need at least %d", len(c.Crypto), MinCryptoCatalogSize)
	}
	for _, col := range c.Collections {
		if col.MaxLevel <= 0 {
			return fmt.Errorf("catalog: collection %q has no max level", col.ID)
		}
	}
	return nil
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *Catalog
)

// DefaultCatalog returns the embedded catalog. It panics if the embedded
// document is broken, which only a bad build can cause.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := ParseCatalog(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// NewState builds a fresh game from the catalog. rng draws the float of
// every stock whose supply the catalog leaves open.
func (c *Catalog) NewState(now time.Time, rng Rand) *GameState {
	s := &GameState{
		SchemaVersion: CurrentSchemaVersion,
		Balance:       c.StartingBalance,
		ClickIncome:   c.ClickIncome,
		LastSaveTime:  now.UnixMilli(),
	}
	u := c.Upgrades[UpgradeClickBoost]
	s.Upgrades.ClickBoost = Upgrade(u)
	u = c.Upgrades[UpgradeAutoClicker]
	s.Upgrades.AutoClicker = Upgrade(u)

	s.Businesses = make([]Business, 0, len(c.Businesses))
	for _, b := range c.Businesses {
		s.Businesses = append(s.Businesses, Business{
			ID:         b.ID,
			Name:       b.Name,
			BaseCost:   b.BaseCost,
			BaseIncome: b.BaseIncome,
			Icon:       b.Icon,
			Color:      b.Color,
		})
	}

	s.Investments.Stocks = c.newStocks(rng)

	s.Investments.Crypto = make([]Crypto, 0, len(c.Crypto))
	for _, cr := range c.Crypto {
		s.Investments.Crypto = append(s.Investments.Crypto, Crypto{
			ID:      cr.ID,
			Name:    cr.Name,
			Price:   cr.Price,
			History: []float64{cr.Price},
			LogoURL: cryptoLogoURL(cr.ID, cr.Name),
		})
	}

	s.Investments.RealEstate = make([]RealEstate, 0, len(c.RealEstate))
	for _, r := range c.RealEstate {
		s.Investments.RealEstate = append(s.Investments.RealEstate, RealEstate{
			ID:           r.ID,
			Name:         r.Name,
			Cost:         r.Cost,
			RentalIncome: r.RentalIncome,
			ImageURL:     r.ImageURL,
		})
	}

	s.Investments.Cars = make([]Car, 0, len(c.Cars))
	for _, car := range c.Cars {
		s.Investments.Cars = append(s.Investments.Cars, Car{
			ID:                car.ID,
			Name:              car.Name,
			Cost:              car.Cost,
			AppreciationValue: car.Appreciation,
			ImageURL:          car.ImageURL,
		})
	}

	s.Collections = make([]Collection, 0, len(c.Collections))
	for _, col := range c.Collections {
		s.Collections = append(s.Collections, Collection{
			ID:       col.ID,
			Name:     col.Name,
			MaxLevel: col.MaxLevel,
			BaseCost: col.BaseCost,
			Icon:     col.Icon,
		})
	}

	s.Tasks = make([]Task, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		s.Tasks = append(s.Tasks, Task{
			ID:          t.ID,
			Description: t.Description,
			Type:        t.Type,
			TargetID:    t.Target,
			Goal:        t.Goal,
			Reward:      t.Reward,
		})
	}

	s.AutoIncomePerSecond = ComputeIncome(s)
	evaluateTasks(s)
	return s
}

func (c *Catalog) newStocks(rng Rand) []Stock {
	out := make([]Stock, 0, len(c.Stocks))
	for _, cs := range c.Stocks {
		supply := cs.Supply
		if supply <= 0 {
			supply = stockSupplyFloor + int64(rng.Float64()*stockSupplySpan)
		}
		out = append(out, Stock{
			ID:               cs.Ticker,
			Name:             cs.Name,
			Domain:           cs.Domain,
			Industry:         cs.Industry,
			Price:            cs.Price,
			DividendPerShare: cs.Price * DividendYield,
			History:          []float64{cs.Price},
			TotalSupply:      supply,
			AvailableSupply:  supply,
		})
	}
	return out
}

func cryptoLogoURL(id, name string) string {
	slug := strings.Replace(strings.ToLower(name), " ", "-", 1)
	return fmt.Sprintf("https://cryptologos.cc/logos/%s-%s-logo.png", slug, strings.ToLower(id))
}
