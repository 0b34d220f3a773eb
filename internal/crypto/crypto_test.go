package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// First account of the standard dev mnemonic.
const (
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestLoadKeyRaw(t *testing.T) {
	for _, raw := range []string{devKey, "0x" + devKey, "  0x" + devKey + "\n"} {
		key, err := LoadKey(KeySource{RawPrivateKey: raw})
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(devAddress), NewTxSigner(key).Address())
	}

	_, err := LoadKey(KeySource{RawPrivateKey: "zz"})
	assert.Error(t, err)

	_, err = LoadKey(KeySource{})
	assert.ErrorContains(t, err, "no deployer key configured")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+devKey, "hunter2")
	require.NoError(t, err)
	assert.Contains(t, string(blob), devAddress)
	assert.NotContains(t, string(blob), devKey)

	key, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), NewTxSigner(key).Address())

	_, err = DecryptKey(blob, "wrong")
	assert.ErrorContains(t, err, "decryption failed")

	_, err = DecryptKey(blob, "")
	assert.Error(t, err)

	_, err = EncryptKey(devKey, "")
	assert.Error(t, err)
}

func TestLoadKeyFromFile(t *testing.T) {
	blob, err := EncryptKey(devKey, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "deployer.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	key, err := LoadKey(KeySource{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), NewTxSigner(key).Address())

	_, err = LoadKey(KeySource{EncryptedKeyPath: filepath.Join(t.TempDir(), "missing.json"), KeyPassword: "pw"})
	assert.ErrorContains(t, err, "reading key file")
}

func TestTxSignerRecoversSender(t *testing.T) {
	key, err := LoadKey(KeySource{RawPrivateKey: devKey})
	require.NoError(t, err)
	signer := NewTxSigner(key)

	chainID := big.NewInt(31337)
	to := common.HexToAddress("0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9")

	for _, tx := range []*types.Transaction{
		types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			GasTipCap: big.NewInt(1e9),
			GasFeeCap: big.NewInt(10e9),
			Gas:       100_000,
			To:        &to,
		}),
		types.NewTx(&types.LegacyTx{
			GasPrice: big.NewInt(310e9),
			Gas:      100_000,
			To:       &to,
		}),
	} {
		signed, err := signer.SignTx(tx, chainID)
		require.NoError(t, err)

		from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
		require.NoError(t, err)
		assert.Equal(t, signer.Address(), from)
	}
}
