package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/optionsdeployer/internal/blob/s3"
	"github.com/alanyoungcy/optionsdeployer/internal/cache/redis"
	"github.com/alanyoungcy/optionsdeployer/internal/chain"
	"github.com/alanyoungcy/optionsdeployer/internal/config"
	"github.com/alanyoungcy/optionsdeployer/internal/crypto"
	"github.com/alanyoungcy/optionsdeployer/internal/domain"
	"github.com/alanyoungcy/optionsdeployer/internal/market"
	"github.com/alanyoungcy/optionsdeployer/internal/notify"
	"github.com/alanyoungcy/optionsdeployer/internal/params"
	"github.com/alanyoungcy/optionsdeployer/internal/registry"
	"github.com/alanyoungcy/optionsdeployer/internal/service"
	"github.com/alanyoungcy/optionsdeployer/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Specs   []domain.MarketSpec
	Service *service.DeploymentService

	// Account is the deployer address; zero outside deploy mode.
	Account common.Address
	// Ledger is nil unless the ledger is enabled. History mode reads it.
	Ledger domain.DeploymentStore
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources. Plan mode wires only the
// registry and compiler: no key, RPC or optional backend is touched. History
// mode wires only the ledger.
func Wire(ctx context.Context, cfg *config.Config, mode string, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if mode == "history" {
		pgClient, err := openLedger(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pgClient.Close)
		return &Dependencies{Ledger: postgres.NewDeploymentStore(pgClient.Pool())}, cleanup, nil
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return fail(fmt.Errorf("wire: registry: %w", err))
	}
	specs, err := MarketSpecs(cfg.Deployment)
	if err != nil {
		return fail(fmt.Errorf("wire: market specs: %w", err))
	}

	network := domain.Network(cfg.Deployment.Network)
	svcDeps := service.DeploymentDeps{
		Resolver: reg,
		Compiler: params.NewCompiler(domain.Scale, time.Now, logger),
	}
	svcOpts := service.DeploymentOptions{
		Network:       network,
		Risk:          reg.Risk(cfg.Risk.DisputePeriod.Duration),
		LockTTL:       cfg.Lock.TTL.Duration,
		ArchivePrefix: cfg.Archive.Prefix,
	}
	deps := &Dependencies{Specs: specs}

	if mode == "plan" {
		deps.Service = service.NewDeploymentService(svcDeps, svcOpts, logger)
		return deps, cleanup, nil
	}

	// --- Deployer account ---
	key, err := crypto.LoadKey(crypto.KeySource{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: deployer key: %w", err))
	}
	signer := crypto.NewTxSigner(key)
	deps.Account = signer.Address()
	svcOpts.Account = signer.Address()

	// --- Ethereum RPC ---
	dialCtx, cancel := ctx, context.CancelFunc(func() {})
	if cfg.RPC.Timeout.Duration > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, cfg.RPC.Timeout.Duration)
	}
	client, err := chain.Dial(dialCtx, cfg.RPC.URL)
	cancel()
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	closers = append(closers, client.Close)

	chainID, err := resolveChainID(ctx, cfg, reg, client)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	gas, err := chain.ParseGasPolicy(cfg.Deployment.GasPrice)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	tx := chain.NewTransactor(client, signer, chain.TransactorConfig{
		ChainID:           chainID,
		Gas:               gas,
		GasLimitBufferPct: uint64(cfg.Deployment.GasLimitBufferPct),
		ReceiptTimeout:    cfg.Deployment.ReceiptTimeout.Duration,
	}, logger)
	contracts := chain.NewContracts(tx)

	svcDeps.Chain = client
	svcDeps.Deployer = market.NewDeployer(contracts, market.Options{
		SettleDelay:     cfg.Recovery.SettleDelay.Duration,
		PollInterval:    cfg.Recovery.PollInterval.Duration,
		MaxPollInterval: cfg.Recovery.MaxPollInterval.Duration,
		MaxWait:         cfg.Recovery.MaxWait.Duration,
	}, market.SystemClock{}, logger)
	svcDeps.Configurer = market.NewConfigurer(contracts, logger)

	logger.InfoContext(ctx, "chain wired",
		slog.String("deployer", deps.Account.Hex()),
		slog.String("chain_id", chainID.String()),
		slog.String("gas_price", gas.String()),
	)

	// --- PostgreSQL deployment ledger ---
	if cfg.Ledger.Enabled {
		pgClient, err := openLedger(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pgClient.Close)

		svcDeps.Ledger = postgres.NewDeploymentStore(pgClient.Pool())
		svcDeps.Audit = postgres.NewAuditStore(pgClient.Pool())
	}

	// --- Redis account lock ---
	if cfg.Lock.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Lock.Addr,
			Password:   cfg.Lock.Password,
			DB:         cfg.Lock.DB,
			PoolSize:   cfg.Lock.PoolSize,
			MaxRetries: cfg.Lock.MaxRetries,
			TLSEnabled: cfg.Lock.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		svcDeps.Lock = redis.NewLockManager(redisClient, logger)
	}

	// --- S3 report archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		if err := s3Client.Health(ctx); err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		svcDeps.Archive = s3blob.NewWriter(s3Client)
		logger.InfoContext(ctx, "archive wired",
			slog.String("bucket", s3Client.Bucket()),
			slog.String("prefix", cfg.Archive.Prefix),
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if notifier := notify.NewNotifier(senders, cfg.Notify.Events, logger); notifier.Enabled() {
		svcDeps.Notifier = notifier
	}

	deps.Service = service.NewDeploymentService(svcDeps, svcOpts, logger)
	return deps, cleanup, nil
}

// openLedger connects to PostgreSQL and applies pending migrations when
// configured to.
func openLedger(ctx context.Context, cfg *config.Config) (*postgres.Client, error) {
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Ledger.DSN,
		Host:     cfg.Ledger.Host,
		Port:     cfg.Ledger.Port,
		Database: cfg.Ledger.Database,
		User:     cfg.Ledger.User,
		Password: cfg.Ledger.Password,
		SSLMode:  cfg.Ledger.SSLMode,
		MaxConns: cfg.Ledger.PoolMaxConns,
		MinConns: cfg.Ledger.PoolMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: postgres: %w", err)
	}
	if cfg.Ledger.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			pgClient.Close()
			return nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	return pgClient, nil
}

// resolveChainID returns the chain ID used for signing: the network's
// configured ID when known, otherwise the one the RPC endpoint reports.
// Preflight later checks that the two agree.
func resolveChainID(ctx context.Context, cfg *config.Config, reg *registry.Registry, client interface {
	ChainID(ctx context.Context) (*big.Int, error)
}) (*big.Int, error) {
	n, err := reg.Network(domain.Network(cfg.Deployment.Network))
	if err != nil {
		return nil, err
	}
	if n.ChainID != 0 {
		return big.NewInt(n.ChainID), nil
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	return id, nil
}
