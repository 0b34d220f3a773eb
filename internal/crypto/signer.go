package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TxSigner signs transactions for the deployer account.
type TxSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewTxSigner wraps an already loaded private key.
func NewTxSigner(key *ecdsa.PrivateKey) *TxSigner {
	return &TxSigner{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the deployer account address.
func (s *TxSigner) Address() common.Address {
	return s.address
}

// SignTx signs tx for chainID with the latest signer rules, which covers both
// legacy (EIP-155) and dynamic-fee transactions.
func (s *TxSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: sign tx: %w", err)
	}
	return signed, nil
}
