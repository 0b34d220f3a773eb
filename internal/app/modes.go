package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
	"github.com/alanyoungcy/optionsdeployer/internal/params"
	"github.com/alanyoungcy/optionsdeployer/internal/service"
)

// DeployMode checks the chain, deploys and configures every configured
// market variant and prints the run report. A failed run still prints the
// markets created before the failure.
func (a *App) DeployMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting deploy mode", slog.Int("markets", len(deps.Specs)))

	if err := deps.Service.Preflight(ctx); err != nil {
		return err
	}

	report, err := deps.Service.Run(ctx, deps.Specs)
	if report.RunID != "" {
		fmt.Fprintln(a.out, service.Summary(report))
	}
	if err != nil {
		return fmt.Errorf("app: deploy: %w", err)
	}
	return nil
}

// PlanMode resolves and compiles every configured market variant and prints
// what deploy mode would submit. Nothing touches the chain.
func (a *App) PlanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting plan mode", slog.Int("markets", len(deps.Specs)))

	plans, err := deps.Service.PlanAll(deps.Specs)
	if err != nil {
		return fmt.Errorf("app: plan: %w", err)
	}
	for _, p := range plans {
		writePlan(a.out, p, time.Now())
	}
	return nil
}

// HistoryMode prints the most recent deployment runs from the ledger, newest
// first, each with the markets it created.
func (a *App) HistoryMode(ctx context.Context, deps *Dependencies) error {
	opts := domain.ListOpts{Limit: a.cfg.Ledger.HistoryLimit}
	if window := a.cfg.Ledger.HistoryWindow.Duration; window > 0 {
		since := time.Now().Add(-window)
		opts.Since = &since
	}

	runs, err := deps.Ledger.ListRuns(ctx, opts)
	if err != nil {
		return fmt.Errorf("app: history: %w", err)
	}
	a.logger.InfoContext(ctx, "starting history mode", slog.Int("runs", len(runs)))

	if len(runs) == 0 {
		fmt.Fprintln(a.out, "no deployment runs recorded")
		return nil
	}
	for _, r := range runs {
		full, err := deps.Ledger.GetRun(ctx, r.RunID)
		if err != nil {
			return fmt.Errorf("app: history: %w", err)
		}
		fmt.Fprintf(a.out, "started %s\n%s\n\n", full.StartedAt.UTC().Format(time.RFC3339), service.Summary(full))
	}
	return nil
}

func writePlan(w io.Writer, p domain.MarketPlan, now time.Time) {
	strikes := make([]string, len(p.Spec.StrikePrices))
	for i, s := range p.Spec.StrikePrices {
		strikes[i] = fmt.Sprintf("%s (%s)", s.String(), p.Params.StrikePrices[i].String())
	}

	fmt.Fprintf(w, "%s %s on %s\n", p.Spec.Pair(), p.Spec.Kind(), p.Network.Network)
	fmt.Fprintf(w, "  factory:     %s\n", p.Network.Factory.Hex())
	fmt.Fprintf(w, "  oracle:      %s\n", p.Params.Oracle.Hex())
	fmt.Fprintf(w, "  base token:  %s\n", p.Params.BaseToken.Hex())
	fmt.Fprintf(w, "  quote token: %s\n", p.Params.QuoteToken.Hex())
	fmt.Fprintf(w, "  strikes:     %s\n", strings.Join(strikes, ", "))
	fmt.Fprintf(w, "  expiry:      %s (%d, %s)\n",
		p.Spec.Expiry.Format(time.RFC1123), p.Params.Expiry, params.Humanize(p.Spec.Expiry, now))
	fmt.Fprintf(w, "  trading fee: %s (%s)\n", p.Spec.TradingFee.String(), p.Params.TradingFee.String())
	fmt.Fprintf(w, "  cap symbol:  %s\n", p.Spec.CapSymbol())
}
