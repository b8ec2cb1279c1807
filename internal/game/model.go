package game

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	CurrentSchemaVersion = 2

	HistoryWindow = 50

	IPOListingFee    = 1_000_000.0
	IPOMinSupply     = int64(5_000_000)
	IPOMaxSupply     = int64(10_000_000)
	IPOMaxNameLen    = 20
	IPOMaxTickerLen  = 5
	IPODefaultSector = "Technology"

	DividendYield = 0.005 // 0.5% of listing price per share per second.

	MinCryptoCatalogSize = 20

	UpgradeClickBoost  = "click_boost"
	UpgradeAutoClicker = "auto_clicker_1"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInsufficientSupply = errors.New("not enough shares available")
	ErrNothingOwned       = errors.New("nothing owned to sell")
	ErrNotFound           = errors.New("entity not found")
	ErrMaxLevel           = errors.New("already at max level")
	ErrInvalidAmount      = errors.New("amount must be > 0")
	ErrTickerTaken        = errors.New("ticker symbol already exists")
	ErrTickerTooLong      = errors.New("ticker must be 5 characters or less")
	ErrNameTooLong        = errors.New("company name must be 20 characters or less")
	ErrInvalidIPO         = errors.New("invalid ipo parameters")
	ErrNotClaimable       = errors.New("task is not claimable")
	ErrInvalidImport      = errors.New("invalid save data")
)

// Tickers are free-form like the IPO form, but they end up as a URL path
// segment, so whitespace and URL delimiters are refused.
var tickerRE = regexp.MustCompile(`^[^\s/?#%]+$`)

// GameState is one snapshot of the whole game. Snapshots are replaced, never
// edited: engines clone before they write.
type GameState struct {
	SchemaVersion       int          `json:"schemaVersion"`
	Balance             float64      `json:"balance"`
	ClickIncome         float64      `json:"clickIncome"`
	AutoIncomePerSecond float64      `json:"autoIncomePerSecond"`
	LastSaveTime        int64        `json:"lastSaveTime"`
	Upgrades            Upgrades     `json:"upgrades"`
	Businesses          []Business   `json:"businesses"`
	Investments         Investments  `json:"investments"`
	Collections         []Collection `json:"collections"`
	Tasks               []Task       `json:"tasks"`
}

type Upgrade struct {
	Level          int64   `json:"level"`
	BaseCost       float64 `json:"baseCost"`
	IncomePerLevel float64 `json:"incomePerLevel"`
}

type Upgrades struct {
	ClickBoost  Upgrade `json:"click_boost"`
	AutoClicker Upgrade `json:"auto_clicker_1"`
}

// Get returns a pointer into u for the named upgrade, or nil.
func (u *Upgrades) Get(id string) *Upgrade {
	switch id {
	case UpgradeClickBoost:
		return &u.ClickBoost
	case UpgradeAutoClicker:
		return &u.AutoClicker
	default:
		return nil
	}
}

type Business struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Level      int64   `json:"level"`
	BaseCost   float64 `json:"baseCost"`
	BaseIncome float64 `json:"baseIncome"`
	Icon       string  `json:"icon"`
	Color      string  `json:"color,omitempty"`
}

type Investments struct {
	Stocks     []Stock      `json:"stocks"`
	RealEstate []RealEstate `json:"realEstate"`
	Crypto     []Crypto     `json:"crypto"`
	Cars       []Car        `json:"cars"`
}

type Stock struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Domain           string    `json:"domain"`
	Industry         string    `json:"industry"`
	Shares           int64     `json:"shares"`
	Price            float64   `json:"price"`
	DividendPerShare float64   `json:"dividendPerShare"`
	History          []float64 `json:"history"`
	TotalSupply      int64     `json:"totalSupply"`
	AvailableSupply  int64     `json:"availableSupply"`
}

type RealEstate struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Owned        int64   `json:"owned"`
	Cost         float64 `json:"cost"`
	RentalIncome float64 `json:"rentalIncome"`
	ImageURL     string  `json:"imageUrl"`
}

type Crypto struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Owned   float64   `json:"owned"`
	Price   float64   `json:"price"`
	History []float64 `json:"history"`
	LogoURL string    `json:"logoUrl"`
}

type Car struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Owned             int64   `json:"owned"`
	Cost              float64 `json:"cost"`
	AppreciationValue float64 `json:"appreciationValue"`
	ImageURL          string  `json:"imageUrl"`
}

type Collection struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Level    int64   `json:"level"`
	MaxLevel int64   `json:"maxLevel"`
	BaseCost float64 `json:"baseCost"`
	Icon     string  `json:"icon"`
}

type TaskType string

const (
	TaskBalance       TaskType = "balance"
	TaskBusinessLevel TaskType = "businessLevel"
	TaskAutoIncome    TaskType = "autoIncome"
	TaskOwnRealEstate TaskType = "ownRealEstate"
	TaskTotalFortune  TaskType = "totalFortune"
	TaskUpgradeLevel  TaskType = "upgradeLevel"
	TaskStockShares   TaskType = "stockShares"
	TaskOwnCar        TaskType = "ownCar"
)

type Task struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Type        TaskType `json:"type"`
	TargetID    string   `json:"targetId,omitempty"`
	Goal        float64  `json:"goal"`
	Reward      float64  `json:"reward"`
	IsCompleted bool     `json:"isCompleted"`
	IsClaimed   bool     `json:"isClaimed"`
}

// Clone returns a deep copy of s.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := *s
	out.Businesses = append([]Business(nil), s.Businesses...)
	out.Collections = append([]Collection(nil), s.Collections...)
	out.Tasks = append([]Task(nil), s.Tasks...)
	out.Investments.RealEstate = append([]RealEstate(nil), s.Investments.RealEstate...)
	out.Investments.Cars = append([]Car(nil), s.Investments.Cars...)

	out.Investments.Stocks = make([]Stock, len(s.Investments.Stocks))
	for i, st := range s.Investments.Stocks {
		st.History = append([]float64(nil), st.History...)
		out.Investments.Stocks[i] = st
	}
	out.Investments.Crypto = make([]Crypto, len(s.Investments.Crypto))
	for i, c := range s.Investments.Crypto {
		c.History = append([]float64(nil), c.History...)
		out.Investments.Crypto[i] = c
	}
	return &out
}

func (s *GameState) business(id string) *Business {
	for i := range s.Businesses {
		if s.Businesses[i].ID == id {
			return &s.Businesses[i]
		}
	}
	return nil
}

func (s *GameState) collection(id string) *Collection {
	for i := range s.Collections {
		if s.Collections[i].ID == id {
			return &s.Collections[i]
		}
	}
	return nil
}

func (s *GameState) stock(id string) *Stock {
	for i := range s.Investments.Stocks {
		if s.Investments.Stocks[i].ID == id {
			return &s.Investments.Stocks[i]
		}
	}
	return nil
}

func (s *GameState) crypto(id string) *Crypto {
	for i := range s.Investments.Crypto {
		if s.Investments.Crypto[i].ID == id {
			return &s.Investments.Crypto[i]
		}
	}
	return nil
}

func (s *GameState) estate(id string) *RealEstate {
	for i := range s.Investments.RealEstate {
		if s.Investments.RealEstate[i].ID == id {
			return &s.Investments.RealEstate[i]
		}
	}
	return nil
}

func (s *GameState) car(id string) *Car {
	for i := range s.Investments.Cars {
		if s.Investments.Cars[i].ID == id {
			return &s.Investments.Cars[i]
		}
	}
	return nil
}

func (s *GameState) task(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// NormalizeTicker uppercases and trims a ticker typed by the player.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ValidateTicker checks an already normalized ticker.
func ValidateTicker(ticker string) error {
	if ticker == "" || ticker != strings.ToUpper(ticker) || !tickerRE.MatchString(ticker) {
		return ErrInvalidIPO
	}
	if utf8.RuneCountInString(ticker) > IPOMaxTickerLen {
		return ErrTickerTooLong
	}
	return nil
}

// pushHistory appends v and keeps only the newest HistoryWindow samples.
func pushHistory(history []float64, v float64) []float64 {
	return trimWindow(append(history, v))
}
