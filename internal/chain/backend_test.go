package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend is an in-memory Backend. Sent transactions are mined
// immediately with status revertStatus when revert is set.
type fakeBackend struct {
	mu sync.Mutex

	chainID   *big.Int
	baseFee   *big.Int
	gasPrice  *big.Int
	tip       *big.Int
	estimate  uint64
	estErr    error
	sendErr   error
	revert    bool
	nonce     uint64
	code      map[common.Address][]byte
	callFn    func(ethereum.CallMsg) ([]byte, error)
	sent      []*types.Transaction
	estimates []ethereum.CallMsg
	receipts  map[common.Hash]*types.Receipt
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:  big.NewInt(31337),
		baseFee:  big.NewInt(1_000_000_000),
		gasPrice: big.NewInt(2_000_000_000),
		tip:      big.NewInt(100_000_000),
		estimate: 100_000,
		code:     make(map[common.Address][]byte),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) { return b.chainID, nil }

func (b *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(1e18), nil
}

func (b *fakeBackend) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.code[account], nil
}

func (b *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if b.callFn == nil {
		return nil, errors.New("no call handler")
	}
	return b.callFn(call)
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return b.gasPrice, nil }

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return b.tip, nil }

func (b *fakeBackend) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.estimates = append(b.estimates, call)
	return b.estimate, b.estErr
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	status := types.ReceiptStatusSuccessful
	if b.revert {
		status = types.ReceiptStatusFailed
	}
	b.sent = append(b.sent, tx)
	b.nonce++
	b.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		GasUsed:     tx.Gas() / 2,
		BlockNumber: big.NewInt(101),
	}
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}
