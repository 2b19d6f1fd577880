package blockchain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TxSigner signs legacy transactions for one account. The queue subsystem
// uses two of these: one for payment settlements, one for mints.
type TxSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewTxSigner creates a signer from a hex-encoded private key
func NewTxSigner(privateKeyHex string, chainID *big.Int) (*TxSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &TxSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// Address returns the signing account's address
func (s *TxSigner) Address() common.Address {
	return s.address
}

// SignCall builds and signs a contract call transaction with the given
// nonce and gas price.
func (s *TxSigner) SignCall(to common.Address, data []byte, nonce uint64, gasPrice *big.Int, gasLimit uint64) (*types.Transaction, error) {
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}
