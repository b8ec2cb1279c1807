package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tycoon/internal/game"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

var tierColors = map[game.CardTier]*color.Color{
	game.TierSilver:   color.New(color.FgWhite, color.Bold),
	game.TierGold:     color.New(color.FgYellow, color.Bold),
	game.TierPlatinum: color.New(color.FgHiCyan, color.Bold),
	game.TierDiamond:  color.New(color.FgHiBlue, color.Bold),
	game.TierKing:     color.New(color.FgHiMagenta, color.Bold),
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptFloat(label string, min float64) (float64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			printWarn("Enter a valid number.")
			continue
		}
		if v <= min {
			printWarn(fmt.Sprintf("Value must be > %.4f", min))
			continue
		}
		return v, nil
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func promptTicker(label string) (string, error) {
	for {
		ticker, err := promptRequired(label)
		if err != nil {
			return "", err
		}
		ticker = game.NormalizeTicker(ticker)
		if err := game.ValidateTicker(ticker); err != nil {
			printWarn(err.Error())
			continue
		}
		return ticker, nil
	}
}

func renderDashboard(d game.Dashboard) {
	accent.Println("\n== EMPIRE ==")
	tier, ok := tierColors[d.CardTier]
	if !ok {
		tier = neutral
	}
	fmt.Printf("Card:               %s\n", tier.Sprint(string(d.CardTier)))
	fmt.Printf("Balance:            $%s\n", formatMoney(d.Balance))
	fmt.Printf("Income:             $%s/s\n", formatMoney(d.IncomePerSecond))
	fmt.Printf("Per Tap:            $%s\n", formatMoney(d.ClickIncome))
	fmt.Printf("Total Fortune:      $%s\n", formatMoney(d.TotalFortune))
	if !d.LastSaveTime.IsZero() {
		fmt.Printf("Last Save:          %s\n", d.LastSaveTime.Local().Format("2006-01-02 15:04:05"))
	}

	fmt.Println()
	accent.Println("Income Sources")
	fmt.Printf("%-14s %14s\n", "SOURCE", "PER SEC")
	for _, row := range []struct {
		name string
		v    float64
	}{
		{"Auto clicker", d.Income.AutoClicker},
		{"Businesses", d.Income.Businesses},
		{"Dividends", d.Income.Dividends},
		{"Rent", d.Income.Rent},
		{"Collections", d.Income.Collections},
	} {
		fmt.Printf("%-14s %14s\n", row.name, formatMoney(row.v))
	}

	fmt.Println()
	accent.Println("Holdings")
	fmt.Printf("%-14s %18s\n", "CATEGORY", "VALUE")
	for _, row := range []struct {
		name string
		v    float64
	}{
		{"Cash", d.Fortune.Cash},
		{"Businesses", d.Fortune.Businesses},
		{"Stocks", d.Fortune.Stocks},
		{"Real estate", d.Fortune.RealEstate},
		{"Cars", d.Fortune.Cars},
		{"Crypto", d.Fortune.Crypto},
		{"Collections", d.Fortune.Collections},
	} {
		fmt.Printf("%-14s %18s\n", row.name, formatMoney(row.v))
	}
	if d.Claimable > 0 {
		fmt.Println()
		printSuccess(fmt.Sprintf("%d task reward(s) ready. Run `tyc tasks` to claim.", d.Claimable))
	}
	fmt.Println()
}

func renderBusinesses(s game.GameState) {
	accent.Println("\n== BUSINESSES ==")
	fmt.Printf("%-16s %-20s %6s %14s %12s\n", "ID", "NAME", "LEVEL", "NEXT COST", "INCOME/S")
	for _, b := range s.Businesses {
		fmt.Printf("%-16s %-20s %6d %14s %12s\n",
			b.ID,
			truncate(b.Name, 20),
			b.Level,
			formatMoney(game.BusinessCost(b.BaseCost, b.Level, 0)),
			formatMoney(float64(b.Level)*b.BaseIncome),
		)
	}
	fmt.Println()
	accent.Println("Upgrades")
	for _, row := range []struct {
		id string
		u  game.Upgrade
	}{
		{game.UpgradeClickBoost, s.Upgrades.ClickBoost},
		{game.UpgradeAutoClicker, s.Upgrades.AutoClicker},
	} {
		fmt.Printf("%-16s level %-4d next $%s\n", row.id, row.u.Level, formatMoney(game.UpgradeCost(row.u.BaseCost, row.u.Level)))
	}
	fmt.Println()
	accent.Println("Collections")
	for _, c := range s.Collections {
		next := "maxed"
		if c.Level < c.MaxLevel {
			next = "$" + formatMoney(game.CollectionCost(c.BaseCost, c.Level))
		}
		fmt.Printf("%-16s %-20s %2d/%-2d next %s\n", c.ID, truncate(c.Name, 20), c.Level, c.MaxLevel, next)
	}
	fmt.Println()
}

func renderStocks(stocks []game.StockView, ownedOnly bool) {
	accent.Println("\n== STOCK MARKET ==")
	fmt.Printf("%-6s %-22s %-12s %12s %3s %10s %12s %8s\n", "TICKER", "NAME", "INDUSTRY", "PRICE", "", "OWNED", "AVAILABLE", "MAX BUY")
	shown := 0
	for _, st := range stocks {
		if ownedOnly && st.Shares == 0 {
			continue
		}
		shown++
		fmt.Printf("%-6s %-22s %-12s %12s %3s %10s %12s %8s\n",
			st.Ticker,
			truncate(st.Name, 22),
			truncate(st.Industry, 12),
			formatMoney(st.Price),
			trendArrow(st.Up),
			comma(st.Shares),
			comma(st.AvailableSupply),
			comma(st.MaxAffordable),
		)
	}
	if shown == 0 {
		printInfo("No stocks to show.")
	}
	fmt.Println()
}

func renderCrypto(coins []game.CryptoView, ownedOnly bool) {
	accent.Println("\n== CRYPTO ==")
	fmt.Printf("%-16s %-20s %14s %3s %14s\n", "ID", "NAME", "PRICE", "", "OWNED")
	shown := 0
	for _, c := range coins {
		if ownedOnly && c.Owned == 0 {
			continue
		}
		shown++
		fmt.Printf("%-16s %-20s %14s %3s %14s\n",
			truncate(c.ID, 16),
			truncate(c.Name, 20),
			formatMoney(c.Price),
			trendArrow(c.Up),
			decimal.NewFromFloat(c.Owned).StringFixed(4),
		)
	}
	if shown == 0 {
		printInfo("No coins to show.")
	}
	fmt.Println()
}

func renderAssets(s game.GameState) {
	accent.Println("\n== REAL ESTATE ==")
	fmt.Printf("%-14s %-24s %14s %12s %6s\n", "ID", "NAME", "COST", "RENT/S", "OWNED")
	for _, r := range s.Investments.RealEstate {
		fmt.Printf("%-14s %-24s %14s %12s %6d\n", r.ID, truncate(r.Name, 24), formatMoney(r.Cost), formatMoney(r.RentalIncome), r.Owned)
	}
	fmt.Println()
	accent.Println("== GARAGE ==")
	fmt.Printf("%-14s %-24s %14s %6s\n", "ID", "NAME", "VALUE", "OWNED")
	for _, c := range s.Investments.Cars {
		fmt.Printf("%-14s %-24s %14s %6d\n", c.ID, truncate(c.Name, 24), formatMoney(c.Cost), c.Owned)
	}
	fmt.Println()
}

func renderTasks(tasks []game.TaskView) {
	accent.Println("\n== TASKS ==")
	fmt.Printf("%-8s %-40s %14s %12s %-10s\n", "ID", "GOAL", "PROGRESS", "REWARD", "STATUS")
	for _, t := range tasks {
		status := neutral.Sprint("open")
		switch {
		case t.IsClaimed:
			status = neutral.Sprint("claimed")
		case t.IsCompleted:
			status = success.Sprint("claimable")
		}
		fmt.Printf("%-8s %-40s %14s %12s %-10s\n",
			t.ID,
			truncate(t.Description, 40),
			progress(t.Current, t.Goal),
			formatMoney(t.Reward),
			status,
		)
	}
	fmt.Println()
}

func renderChange(label string, before, after game.GameState) {
	delta := after.Balance - before.Balance
	printSuccess(label)
	fmt.Printf("Balance: $%s (%s)\n", formatMoney(after.Balance), colorizeMoney(delta))
	if after.AutoIncomePerSecond != before.AutoIncomePerSecond {
		fmt.Printf("Income:  $%s/s (%s)\n", formatMoney(after.AutoIncomePerSecond), colorizeMoney(after.AutoIncomePerSecond-before.AutoIncomePerSecond))
	}
}

func progress(current, goal float64) string {
	if goal <= 0 {
		return "-"
	}
	pct := decimal.NewFromFloat(current).Div(decimal.NewFromFloat(goal)).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		pct = decimal.NewFromInt(100)
	}
	return pct.StringFixed(0) + "%"
}

func trendArrow(up bool) string {
	if up {
		return success.Sprint("▲")
	}
	return danger.Sprint("▼")
}

func colorizeMoney(v float64) string {
	text := signedMoney(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

// formatMoney renders v with two decimals and thousands separators. Values
// go through decimal so that 0.1+0.2 style noise never shows as 0.30000001.
func formatMoney(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0)
	frac := d.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("%s%s.%02d", sign, commaString(whole.String()), frac)
}

func signedMoney(v float64) string {
	if v > 0 {
		return "+" + formatMoney(v)
	}
	return formatMoney(v)
}

func comma(v int64) string {
	if v < 0 {
		return "-" + commaString(strconv.FormatInt(-v, 10))
	}
	return commaString(strconv.FormatInt(v, 10))
}

func commaString(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
