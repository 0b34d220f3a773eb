package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// DeploymentStore implements domain.DeploymentStore using PostgreSQL.
// Wei amounts are stored as NUMERIC(78,0) and travel as decimal strings.
type DeploymentStore struct {
	pool *pgxpool.Pool
}

var _ domain.DeploymentStore = (*DeploymentStore)(nil)

// NewDeploymentStore creates a new DeploymentStore backed by the given pool.
func NewDeploymentStore(pool *pgxpool.Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

// StartRun inserts a run row in its initial state.
func (s *DeploymentStore) StartRun(ctx context.Context, r domain.RunReport) error {
	const query = `
		INSERT INTO deployment_runs (run_id, network, deployer, status, balance_before, started_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6)`
	_, err := s.pool.Exec(ctx, query,
		r.RunID, string(r.Network), r.Deployer.Hex(), string(r.Status),
		numeric(r.BalanceBefore), r.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: start run %s: %w", r.RunID, err)
	}
	return nil
}

// RecordMarket stores a market created by a run.
func (s *DeploymentStore) RecordMarket(ctx context.Context, runID string, m domain.DeployedMarket) error {
	const query = `
		INSERT INTO deployed_markets (run_id, address, is_put, cap_symbol, tx_hash, market_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		runID, m.Address.Hex(), m.IsPut, string(m.CapSymbol), m.TxHash.Hex(), int64(m.Index),
	)
	if err != nil {
		return fmt.Errorf("postgres: record market %s: %w", m.Address.Hex(), err)
	}
	return nil
}

// FinishRun stores the final state of a run.
func (s *DeploymentStore) FinishRun(ctx context.Context, r domain.RunReport) error {
	const query = `
		UPDATE deployment_runs
		SET status = $2, error = $3, balance_after = $4::text::numeric, gas_spent = $5::text::numeric, finished_at = $6
		WHERE run_id = $1`
	tag, err := s.pool.Exec(ctx, query,
		r.RunID, string(r.Status), r.Error,
		numeric(r.BalanceAfter), numeric(r.GasSpent), r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: finish run %s: %w", r.RunID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: finish run %s: %w", r.RunID, domain.ErrNotFound)
	}
	return nil
}

const runColumns = `run_id::text, network, deployer, status, error,
	balance_before::text, balance_after::text, gas_spent::text, started_at, finished_at`

// GetRun loads a run with its markets.
func (s *DeploymentStore) GetRun(ctx context.Context, runID string) (domain.RunReport, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM deployment_runs WHERE run_id = $1`, runID)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RunReport{}, fmt.Errorf("postgres: get run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("postgres: get run %s: %w", runID, err)
	}

	markets, err := s.marketsFor(ctx, runID)
	if err != nil {
		return domain.RunReport{}, err
	}
	r.Markets = markets
	return r, nil
}

// ListRuns returns runs newest first, without their markets.
func (s *DeploymentStore) ListRuns(ctx context.Context, opts domain.ListOpts) ([]domain.RunReport, error) {
	query, args := withListOpts(`SELECT `+runColumns+` FROM deployment_runs`, "started_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RunReport, error) {
		return scanRun(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	return runs, nil
}

func (s *DeploymentStore) marketsFor(ctx context.Context, runID string) ([]domain.DeployedMarket, error) {
	const query = `
		SELECT address, is_put, cap_symbol, tx_hash, market_index
		FROM deployed_markets WHERE run_id = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets for run %s: %w", runID, err)
	}
	defer rows.Close()

	var markets []domain.DeployedMarket
	for rows.Next() {
		var (
			m               domain.DeployedMarket
			address, txHash string
			capSymbol       string
			index           int64
		)
		if err := rows.Scan(&address, &m.IsPut, &capSymbol, &txHash, &index); err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		m.Address = common.HexToAddress(address)
		m.TxHash = common.HexToHash(txHash)
		m.CapSymbol = domain.Symbol(capSymbol)
		m.Index = uint64(index)
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

func scanRun(row pgx.Row) (domain.RunReport, error) {
	var (
		r                         domain.RunReport
		network, deployer, status string
		before, after, spent      *string
		finishedAt                *time.Time
	)
	if err := row.Scan(&r.RunID, &network, &deployer, &status, &r.Error,
		&before, &after, &spent, &r.StartedAt, &finishedAt); err != nil {
		return domain.RunReport{}, err
	}
	r.Network = domain.Network(network)
	r.Deployer = common.HexToAddress(deployer)
	r.Status = domain.RunStatus(status)
	r.BalanceBefore = parseNumeric(before)
	r.BalanceAfter = parseNumeric(after)
	r.GasSpent = parseNumeric(spent)
	if finishedAt != nil {
		r.FinishedAt = *finishedAt
	}
	return r, nil
}

// numeric renders a wei amount for a NUMERIC column; nil maps to NULL.
func numeric(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func parseNumeric(s *string) *big.Int {
	if s == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil
	}
	return v
}
