package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
	"github.com/Rajchodisetti/mmfs-scalper/internal/strategy"
)

var (
	forceRun bool
	simSeed  int64
	simDate  string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Trade today's opening window on the wall clock",
		RunE:  runLive,
	}
	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Replay one synthetic session on a simulated clock",
		RunE:  runSimulate,
	}
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := checkConfig(cmd.OutOrStdout(), cfg)
			return err
		},
	}
	profilesCmd = &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in profiles",
		RunE:  listProfiles,
	}
)

func init() {
	runCmd.Flags().BoolVar(&forceRun, "force", false, "run on a non-trading day")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "seed for simulated data (default market_data.seed)")
	simulateCmd.Flags().StringVar(&simDate, "date", "", "session date YYYY-MM-DD (default today)")
}

// checkConfig prints the summary and every finding. Hard errors fail.
func checkConfig(w io.Writer, c config.Root) (config.ValidationResult, error) {
	v := c.Validate()
	fmt.Fprint(w, c.Summary())
	for _, msg := range v.Warnings {
		fmt.Fprintf(w, "WARN  %s\n", msg)
		observ.Warn("config_warning", map[string]any{"message": msg})
	}
	for _, msg := range v.Errors {
		fmt.Fprintf(w, "ERROR %s\n", msg)
	}
	if !v.Valid {
		return v, fmt.Errorf("configuration has %d error(s)", len(v.Errors))
	}
	return v, nil
}

func runLive(cmd *cobra.Command, args []string) error {
	if _, err := checkConfig(cmd.ErrOrStderr(), cfg); err != nil {
		return err
	}
	if cfg.IsLive() {
		return errors.New("live mode needs a broker order port; only the paper broker is built in")
	}
	sess, err := cfg.MarketSession()
	if err != nil {
		return err
	}
	if now := time.Now(); !sess.IsTradingDay(now) && !forceRun {
		return fmt.Errorf("%s is not a trading day (use --force to run anyway)", now.In(sess.Location).Format("Mon 2006-01-02"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := buildEngine(ctx, cfg, wiring{seed: cfg.MarketData.Seed, echo: echoEvents})
	if err != nil {
		return err
	}
	return runEngine(ctx, cmd.OutOrStdout(), e)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if _, err := checkConfig(cmd.ErrOrStderr(), cfg); err != nil {
		return err
	}
	sess, err := cfg.MarketSession()
	if err != nil {
		return err
	}
	day := time.Now().In(sess.Location)
	if simDate != "" {
		day, err = time.ParseInLocation("2006-01-02", simDate, sess.Location)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}
	seed := cfg.MarketData.Seed
	if cmd.Flags().Changed("seed") {
		seed = simSeed
	}

	sim := cfg
	sim.MarketData.Adapter = "sim"
	clock := strategy.NewSimClock(sess.PremarketStart.On(day, sess.Location))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := buildEngine(ctx, sim, wiring{
		now:      clock.Now,
		sleep:    clock.Sleep,
		seed:     seed,
		simulate: true,
		echo:     echoEvents,
	})
	if err != nil {
		return err
	}
	observ.Log("simulation_started", map[string]any{"seed": seed, "date": day.Format("2006-01-02")})
	return runEngine(ctx, cmd.OutOrStdout(), e)
}

// runEngine runs the loop with the status server alongside and prints the
// session report.
func runEngine(ctx context.Context, out io.Writer, e *engine) error {
	defer e.close(context.WithoutCancel(ctx))
	if e.server != nil {
		if err := e.server.Start(); err != nil {
			return fmt.Errorf("status server: %w", err)
		}
	}
	runErr := e.strategy.Run(ctx)
	printReport(out, e.strategy.Trades(), e.strategy.Metrics().Summary())
	return runErr
}

func printReport(w io.Writer, trades []position.TradeResult, sum position.Summary) {
	fmt.Fprintf(w, "\n%-10s %-18s %-5s %4s %10s %10s %-13s %10s\n",
		"SYMBOL", "SETUP", "DIR", "QTY", "ENTRY", "EXIT", "REASON", "NET")
	for _, t := range trades {
		fmt.Fprintf(w, "%-10s %-18s %-5s %4d %10.2f %10.2f %-13s %10.2f\n",
			t.Symbol, t.Setup, t.Direction, t.Quantity, t.EntryPrice, t.ExitPrice, t.ExitReason, t.NetPnl)
	}
	fmt.Fprintln(w, strings.Repeat("-", 88))
	pf := "n/a"
	if sum.ProfitFactor != nil {
		pf = fmt.Sprintf("%.2f", *sum.ProfitFactor)
	}
	fmt.Fprintf(w, "trades %d  wins %d  losses %d  win rate %.1f%%  net %.2f  costs %.2f  profit factor %s\n",
		sum.TotalTrades, sum.Wins, sum.Losses, sum.WinRate, sum.NetPnl, sum.TotalCosts, pf)
}

func listProfiles(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, name := range config.ProfileNames() {
		p, err := config.Profile(name)
		if err != nil {
			return err
		}
		s := p.Strategy
		fmt.Fprintf(out, "%-13s portfolio %8.0f  risk %.2f%%  max trades %d  positions %d  stop after first loss %t\n",
			name, s.PortfolioValue, s.RiskPerTradePct, s.MaxTradesPerDay, s.MaxPositions, s.StopAfterFirstLoss)
	}
	return nil
}
