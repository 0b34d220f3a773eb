package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// Signer signs transactions on behalf of a single account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// TransactorConfig tunes how transactions are priced and awaited.
type TransactorConfig struct {
	ChainID *big.Int
	Gas     GasPolicy
	// GasLimitBufferPct is added on top of the node's gas estimate.
	GasLimitBufferPct uint64
	// ReceiptTimeout bounds the wait for a transaction to be mined.
	ReceiptTimeout time.Duration
}

// Transactor signs, submits and awaits transactions from one account. It
// never retries: a failed submission is returned to the caller as-is.
type Transactor struct {
	backend Backend
	signer  Signer
	cfg     TransactorConfig
	logger  *slog.Logger
}

// NewTransactor creates a Transactor. Nonces come from the node's pending
// nonce, so only one Transactor may submit for an account at a time.
func NewTransactor(backend Backend, signer Signer, cfg TransactorConfig, logger *slog.Logger) *Transactor {
	if cfg.GasLimitBufferPct == 0 {
		cfg.GasLimitBufferPct = 20
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 10 * time.Minute
	}
	return &Transactor{
		backend: backend,
		signer:  signer,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "transactor")),
	}
}

// From returns the sending account.
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// Backend returns the underlying RPC backend.
func (t *Transactor) Backend() Backend {
	return t.backend
}

// Call executes a read-only contract call against the latest block.
func (t *Transactor) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	from := t.signer.Address()
	out, err := t.backend.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// Transact sends data to the contract at to and waits until the transaction
// is mined. Estimation failures, node rejections and reverted receipts are
// reported as domain.ErrTransactionRejected. label names the call in logs
// and errors.
func (t *Transactor) Transact(ctx context.Context, to common.Address, data []byte, label string) (*types.Receipt, error) {
	from := t.signer.Address()

	nonce, err := t.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: get nonce: %w", label, err)
	}

	gasLimit, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("chain: %s: estimate gas: %w: %v", label, domain.ErrTransactionRejected, err)
	}
	gasLimit = gasLimit * (100 + t.cfg.GasLimitBufferPct) / 100

	tx, err := t.buildTx(ctx, nonce, to, gasLimit, data)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: %w", label, err)
	}

	signed, err := t.signer.SignTx(tx, t.cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: %w", label, err)
	}

	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("chain: %s: send: %w: %v", label, domain.ErrTransactionRejected, err)
	}

	t.logger.InfoContext(ctx, "transaction submitted",
		slog.String("call", label),
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas_limit", gasLimit),
	)

	waitCtx, cancel := context.WithTimeout(ctx, t.cfg.ReceiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, t.backend, signed)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: wait for %s: %w", label, signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("chain: %s: %w: %s reverted in block %s",
			label, domain.ErrTransactionRejected, signed.Hash().Hex(), blockString(receipt))
	}

	t.logger.InfoContext(ctx, "transaction confirmed",
		slog.String("call", label),
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.String("block", blockString(receipt)),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

func (t *Transactor) buildTx(ctx context.Context, nonce uint64, to common.Address, gasLimit uint64, data []byte) (*types.Transaction, error) {
	if !t.cfg.Gas.Auto() {
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: t.cfg.Gas.Price,
			Gas:      gasLimit,
			To:       &to,
			Data:     data,
		}), nil
	}

	head, err := t.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get head: %w", err)
	}

	if head.BaseFee == nil {
		price, err := t.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gasLimit,
			To:       &to,
			Data:     data,
		}), nil
	}

	tip, err := t.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}
	// Leave room for the base fee to double before the tx is mined.
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Data:      data,
	}), nil
}

func blockString(r *types.Receipt) string {
	if r == nil || r.BlockNumber == nil {
		return "?"
	}
	return r.BlockNumber.String()
}
