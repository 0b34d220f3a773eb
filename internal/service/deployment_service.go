package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
	"github.com/alanyoungcy/optionsdeployer/internal/market"
)

// Notification event types sent by the deployment service.
const (
	EventMarketDeployed = "market_deployed"
	EventRunFinished    = "run_finished"
	EventError          = "error"
)

// Resolver looks up network addresses.
type Resolver interface {
	Network(name domain.Network) (domain.NetworkConfig, error)
	Resolve(network domain.Network, base, quote domain.Symbol) (domain.ResolvedNetwork, error)
}

// ParamCompiler turns a market spec into createMarket arguments.
type ParamCompiler interface {
	Compile(spec domain.MarketSpec, network domain.ResolvedNetwork) (domain.CompiledMarketParams, error)
}

// MarketDeployer creates one market and confirms its address.
type MarketDeployer interface {
	Deploy(ctx context.Context, network domain.ResolvedNetwork, params domain.CompiledMarketParams, isPut bool) (domain.DeployedMarket, error)
}

// MarketConfigurer applies risk controls to a deployed market.
type MarketConfigurer interface {
	Configure(ctx context.Context, deployed domain.DeployedMarket, risk domain.RiskParameters) error
}

// ChainReader is the read-only chain access needed for preflight checks and
// gas accounting.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// DeploymentDeps holds the collaborators of a DeploymentService. Ledger,
// Audit, Lock, Archive and Notifier are optional and may be nil.
type DeploymentDeps struct {
	Resolver   Resolver
	Compiler   ParamCompiler
	Deployer   MarketDeployer
	Configurer MarketConfigurer
	Chain      ChainReader

	Ledger   domain.DeploymentStore
	Audit    domain.AuditStore
	Lock     domain.LockManager
	Archive  domain.BlobWriter
	Notifier Notifier
}

// DeploymentOptions configures a DeploymentService.
type DeploymentOptions struct {
	Network       domain.Network
	Account       common.Address // deployer account
	Risk          domain.RiskParameters
	LockTTL       time.Duration
	ArchivePrefix string
	Now           func() time.Time
}

// DeploymentService plans, deploys and configures options markets on one
// network from one account. Markets are processed strictly one at a time.
type DeploymentService struct {
	deps   DeploymentDeps
	opts   DeploymentOptions
	logger *slog.Logger
}

// NewDeploymentService creates a DeploymentService.
func NewDeploymentService(deps DeploymentDeps, opts DeploymentOptions, logger *slog.Logger) *DeploymentService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &DeploymentService{
		deps:   deps,
		opts:   opts,
		logger: logger.With(slog.String("component", "deployment_service")),
	}
}

// Plan resolves and compiles spec and checks that its caps are configured.
// It submits nothing.
func (s *DeploymentService) Plan(spec domain.MarketSpec) (domain.MarketPlan, error) {
	network, err := s.deps.Resolver.Resolve(s.opts.Network, spec.BaseSymbol, spec.QuoteSymbol)
	if err != nil {
		return domain.MarketPlan{}, fmt.Errorf("deployment_service: plan %s: %w", spec.Kind(), err)
	}
	params, err := s.deps.Compiler.Compile(spec, network)
	if err != nil {
		return domain.MarketPlan{}, fmt.Errorf("deployment_service: plan %s: %w", spec.Kind(), err)
	}
	if _, _, err := market.Caps(s.opts.Risk, spec.CapSymbol()); err != nil {
		return domain.MarketPlan{}, fmt.Errorf("deployment_service: plan %s: %w", spec.Kind(), err)
	}
	return domain.MarketPlan{Spec: spec, Network: network, Params: params}, nil
}

// PlanAll plans every spec, stopping at the first failure.
func (s *DeploymentService) PlanAll(specs []domain.MarketSpec) ([]domain.MarketPlan, error) {
	plans := make([]domain.MarketPlan, 0, len(specs))
	for _, spec := range specs {
		plan, err := s.Plan(spec)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// DeployAndConfigure creates the planned market and applies the risk
// controls. When configuration fails the deployed market is still returned
// alongside the error.
func (s *DeploymentService) DeployAndConfigure(ctx context.Context, plan domain.MarketPlan) (domain.DeployedMarket, error) {
	deployed, err := s.deps.Deployer.Deploy(ctx, plan.Network, plan.Params, plan.Spec.IsPut)
	if err != nil {
		return domain.DeployedMarket{}, fmt.Errorf("deployment_service: deploy %s: %w", plan.Spec.Kind(), err)
	}
	deployed.CapSymbol = plan.Spec.CapSymbol()

	if err := s.deps.Configurer.Configure(ctx, deployed, s.opts.Risk); err != nil {
		return deployed, fmt.Errorf("deployment_service: configure %s: %w", plan.Spec.Kind(), err)
	}
	return deployed, nil
}

// Preflight checks concurrently that the RPC endpoint serves the expected
// chain, that the deployer account holds ether and that the factory has
// code.
func (s *DeploymentService) Preflight(ctx context.Context) error {
	network, err := s.deps.Resolver.Network(s.opts.Network)
	if err != nil {
		return fmt.Errorf("deployment_service: preflight: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		id, err := s.deps.Chain.ChainID(gctx)
		if err != nil {
			return fmt.Errorf("read chain id: %w", err)
		}
		if network.ChainID != 0 && id.Cmp(big.NewInt(network.ChainID)) != 0 {
			return fmt.Errorf("%w: rpc serves chain %s, network %s expects %d",
				domain.ErrConfiguration, id, network.Name, network.ChainID)
		}
		return nil
	})

	g.Go(func() error {
		bal, err := s.deps.Chain.BalanceAt(gctx, s.opts.Account, nil)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		if bal.Sign() <= 0 {
			return fmt.Errorf("%w: deployer %s has no ether", domain.ErrConfiguration, s.opts.Account.Hex())
		}
		return nil
	})

	g.Go(func() error {
		code, err := s.deps.Chain.CodeAt(gctx, network.Factory, nil)
		if err != nil {
			return fmt.Errorf("read factory code: %w", err)
		}
		if len(code) == 0 {
			return fmt.Errorf("%w: no contract at factory %s on %s",
				domain.ErrConfiguration, network.Factory.Hex(), network.Name)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("deployment_service: preflight: %w", err)
	}

	s.logger.InfoContext(ctx, "preflight passed",
		slog.String("network", string(network.Name)),
		slog.String("deployer", s.opts.Account.Hex()),
		slog.String("factory", network.Factory.Hex()),
	)
	return nil
}

// Run plans every spec, then deploys and configures them in order. Nothing
// is submitted unless every spec plans cleanly. The first failure stops the
// run; the report returned alongside the error lists the markets created
// before it.
func (s *DeploymentService) Run(ctx context.Context, specs []domain.MarketSpec) (domain.RunReport, error) {
	plans, err := s.PlanAll(specs)
	if err != nil {
		return domain.RunReport{}, err
	}

	if s.deps.Lock != nil {
		lockCtx, unlock, err := s.deps.Lock.Acquire(ctx, lockKey(s.opts.Account), s.opts.LockTTL)
		if err != nil {
			return domain.RunReport{}, fmt.Errorf("deployment_service: lock deployer %s: %w", s.opts.Account.Hex(), err)
		}
		defer unlock()
		// Losing the lock cancels the rest of the run.
		ctx = lockCtx
	}

	report := domain.RunReport{
		RunID:     uuid.NewString(),
		Network:   s.opts.Network,
		Deployer:  s.opts.Account,
		Status:    domain.RunStatusRunning,
		StartedAt: s.opts.Now().UTC(),
	}

	logger := s.logger.With(slog.String("run_id", report.RunID))
	logger.InfoContext(ctx, "deployment run started",
		slog.String("network", string(report.Network)),
		slog.String("deployer", report.Deployer.Hex()),
		slog.Int("markets", len(plans)),
	)

	before, err := s.deps.Chain.BalanceAt(ctx, s.opts.Account, nil)
	if err != nil {
		return report, fmt.Errorf("deployment_service: read opening balance: %w", err)
	}
	report.BalanceBefore = before

	if s.deps.Ledger != nil {
		if err := s.deps.Ledger.StartRun(ctx, report); err != nil {
			logger.WarnContext(ctx, "ledger: start run failed", slog.String("error", err.Error()))
		}
	}

	var runErr error
	for _, plan := range plans {
		if cause := context.Cause(ctx); cause != nil {
			runErr = fmt.Errorf("deployment_service: stopped before %s: %w", plan.Spec.Kind(), cause)
			break
		}
		deployed, err := s.DeployAndConfigure(ctx, plan)
		if deployed.Address != (common.Address{}) {
			report.Markets = append(report.Markets, deployed)
			s.recordMarket(ctx, logger, report.RunID, deployed)
		}
		if err != nil {
			runErr = err
			break
		}
	}

	s.finish(ctx, logger, &report, runErr)
	return report, runErr
}

func (s *DeploymentService) recordMarket(ctx context.Context, logger *slog.Logger, runID string, deployed domain.DeployedMarket) {
	if s.deps.Ledger != nil {
		if err := s.deps.Ledger.RecordMarket(ctx, runID, deployed); err != nil {
			logger.WarnContext(ctx, "ledger: record market failed",
				slog.String("address", deployed.Address.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}
	s.notify(ctx, logger, EventMarketDeployed, "Market deployed", MarketLine(deployed))
}

// finish closes the report and fans it out to the ledger, audit log, archive
// and notifiers. None of these can fail the run.
func (s *DeploymentService) finish(ctx context.Context, logger *slog.Logger, report *domain.RunReport, runErr error) {
	// Bookkeeping must survive a cancelled run context.
	ctx = context.WithoutCancel(ctx)

	after, err := s.deps.Chain.BalanceAt(ctx, s.opts.Account, nil)
	if err != nil {
		logger.WarnContext(ctx, "read closing balance failed", slog.String("error", err.Error()))
	} else {
		report.BalanceAfter = after
		report.GasSpent = new(big.Int).Sub(report.BalanceBefore, after)
	}

	report.FinishedAt = s.opts.Now().UTC()
	report.Status = domain.RunStatusSucceeded
	if runErr != nil {
		report.Status = domain.RunStatusFailed
		report.Error = runErr.Error()
	}

	for _, m := range report.Markets {
		logger.InfoContext(ctx, "deployed market",
			slog.String("address", m.Address.Hex()),
			slog.String("kind", domain.KindOf(m.IsPut)),
			slog.String("cap_symbol", string(m.CapSymbol)),
			slog.String("tx_hash", m.TxHash.Hex()),
		)
	}
	logger.InfoContext(ctx, "deployment run finished",
		slog.String("status", string(report.Status)),
		slog.Int("markets", len(report.Markets)),
		slog.String("gas_spent", FormatEther(report.GasSpent)+" ETH"),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	if s.deps.Ledger != nil {
		if err := s.deps.Ledger.FinishRun(ctx, *report); err != nil {
			logger.WarnContext(ctx, "ledger: finish run failed", slog.String("error", err.Error()))
		}
	}

	if s.deps.Audit != nil {
		detail := map[string]any{
			"run_id":    report.RunID,
			"network":   string(report.Network),
			"deployer":  report.Deployer.Hex(),
			"markets":   len(report.Markets),
			"gas_spent": bigString(report.GasSpent),
		}
		if report.Error != "" {
			detail["error"] = report.Error
		}
		if err := s.deps.Audit.Log(ctx, "deployment_run_"+string(report.Status), detail); err != nil {
			logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}

	if s.deps.Archive != nil {
		if key, err := s.archive(ctx, *report); err != nil {
			logger.WarnContext(ctx, "archive report failed", slog.String("error", err.Error()))
		} else {
			logger.InfoContext(ctx, "report archived", slog.String("key", key))
		}
	}

	if runErr != nil {
		s.notify(ctx, logger, EventError, "Deployment failed", Summary(*report))
		return
	}
	s.notify(ctx, logger, EventRunFinished, "Deployment finished", Summary(*report))
}

func (s *DeploymentService) notify(ctx context.Context, logger *slog.Logger, event, title, message string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Notify(ctx, event, title, message); err != nil {
		logger.WarnContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func lockKey(account common.Address) string {
	return "marketdeploy:deployer:" + account.Hex()
}
