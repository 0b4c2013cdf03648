package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== Pairbot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit pair and signal knobs")
		fmt.Println("3) Edit account and risk knobs")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch paper bot")
		fmt.Println("6) Run backtest")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editStrategy(reader, cfg)
		case "3":
			editAccount(reader, cfg)
		case "4":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launch(reader, "paper")
		case "6":
			launch(reader, "backtest")
		case "7":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	p := cfg.Strategy.Params
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Pair: %s / %s (%s bars, lookback %d)\n", p.AssetA, p.AssetB, p.Timeframe, p.Lookback)
	fmt.Printf("Entry z: %.4f (p=%g) | Exit z: %.4f (p=%g)\n", p.EntryThreshold(), p.EntryPValue, p.ExitThreshold(), p.ExitPValue)
	fmt.Printf("Min spread: %.4f | Leverage: %.2f\n", p.MinSpread, p.Leverage)
	fmt.Printf("Starting cash: $%.2f\n", cfg.Paper.StartingCash)
	fmt.Printf("Taker fee: %.3f%% | Slippage: %.3f%%\n", cfg.Paper.TakerCommission*100, cfg.Paper.Slippage*100)
	fmt.Printf("Max gross leverage: %.2f\n", cfg.Risk.MaxGrossLeverage)
	fmt.Printf("Backtest: %s -> %s from %s\n", cfg.Backtest.Start, cfg.Backtest.End, cfg.Backtest.Source)
	fmt.Printf("Feed: %s | Store: %s\n", cfg.Exchange.Feed, orNone(cfg.Store.Driver))
}

func editStrategy(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Pair / Signal ---")
	p := &cfg.Strategy.Params
	p.AssetA = strings.ToUpper(promptString(reader, "Asset A", p.AssetA))
	p.AssetB = strings.ToUpper(promptString(reader, "Asset B", p.AssetB))
	p.Timeframe = promptString(reader, "Timeframe", p.Timeframe)
	p.Lookback = int(promptFloat(reader, "Lookback bars", float64(p.Lookback)))
	p.EntryPValue = promptFloat(reader, "Entry p-value", p.EntryPValue)
	p.ExitPValue = promptFloat(reader, "Exit p-value", p.ExitPValue)
	p.MinSpread = promptFloat(reader, "Min spread", p.MinSpread)
	p.Leverage = promptFloat(reader, "Leverage", p.Leverage)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("warning: %v\n", err)
	}
}

func editAccount(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Account / Risk ---")
	cfg.Paper.StartingCash = promptFloat(reader, "Starting cash", cfg.Paper.StartingCash)
	cfg.Paper.TakerCommission = promptPercent(reader, "Taker fee (%)", cfg.Paper.TakerCommission)
	cfg.Paper.Slippage = promptPercent(reader, "Slippage (%)", cfg.Paper.Slippage)
	cfg.Risk.MaxGrossLeverage = promptFloat(reader, "Max gross leverage (0 disables)", cfg.Risk.MaxGrossLeverage)
	cfg.Backtest.Start = promptString(reader, "Backtest start", cfg.Backtest.Start)
	cfg.Backtest.End = promptString(reader, "Backtest end", cfg.Backtest.End)
}

func launch(reader *bufio.Reader, command string) {
	fmt.Printf("Launching %s (Ctrl+C to stop)...\n", command)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/pairbot", "--config", locateConfig(), "--pretty", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start bot: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return current
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%g]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %g\n", current)
		return current
	}
	return val
}

func promptPercent(reader *bufio.Reader, label string, current float64) float64 {
	pct := promptFloat(reader, label, current*100)
	return pct / 100
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

// saveConfig writes the file without secrets picked up from the environment.
func saveConfig(cfg *config.Config) error {
	out := *cfg
	out.Exchange.APIKey = ""
	out.Exchange.APISecret = ""
	out.Telegram.Token = ""
	return config.Save(locateConfig(), &out)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
