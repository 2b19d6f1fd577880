package blockchain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	domainerrors "mint-gate.backend/internal/domain/errors"
)

// Function selectors for the calls the gateway submits. The authorized
// transfer follows EIP-3009; mint and mintBatch are the gated-token mint
// entry points keyed by a 32-byte mint reference.
var (
	selTransferWithAuthorization = selector("transferWithAuthorization(address,address,uint256,uint256,uint256,bytes32,uint8,bytes32,bytes32)")
	selMint                      = selector("mint(address,bytes32)")
	selMintBatch                 = selector("mintBatch(address[],bytes32[])")
	selMinted                    = selector("minted(bytes32)")
)

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func padAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func padBig(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// parseBytes32 decodes a 0x-prefixed 32-byte hex value.
func parseBytes32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, fmt.Errorf("%w: bad bytes32 %q", domainerrors.ErrInvalidInput, s)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("%w: bytes32 must be 32 bytes, got %d", domainerrors.ErrInvalidInput, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// splitSignature splits a 65-byte hex signature into its v, r, s components.
// v values of 0/1 are normalized to 27/28.
func splitSignature(sig string) (v uint8, r, s [32]byte, err error) {
	raw, decErr := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if decErr != nil {
		err = fmt.Errorf("%w: malformed signature", domainerrors.ErrInvalidAuthorization)
		return
	}
	if len(raw) != 65 {
		err = fmt.Errorf("%w: signature must be 65 bytes, got %d", domainerrors.ErrInvalidAuthorization, len(raw))
		return
	}
	copy(r[:], raw[:32])
	copy(s[:], raw[32:64])
	v = raw[64]
	if v < 27 {
		v += 27
	}
	return
}

// TransferWithAuthorizationCall packs an EIP-3009 transferWithAuthorization
// call from a signed off-chain authorization.
func TransferWithAuthorizationCall(from, to common.Address, value, validAfter, validBefore *big.Int, nonceHex, signature string) ([]byte, error) {
	nonce, err := parseBytes32(nonceHex)
	if err != nil {
		return nil, fmt.Errorf("%w: authorization nonce: %v", domainerrors.ErrInvalidAuthorization, err)
	}
	v, r, s, err := splitSignature(signature)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 4+9*32)
	data = append(data, selTransferWithAuthorization...)
	data = append(data, padAddress(from)...)
	data = append(data, padAddress(to)...)
	data = append(data, padBig(value)...)
	data = append(data, padBig(validAfter)...)
	data = append(data, padBig(validBefore)...)
	data = append(data, nonce[:]...)
	data = append(data, common.LeftPadBytes([]byte{v}, 32)...)
	data = append(data, r[:]...)
	data = append(data, s[:]...)
	return data, nil
}

// MintCall packs a single mint(recipient, reference) call.
func MintCall(recipient common.Address, referenceHex string) ([]byte, error) {
	ref, err := parseBytes32(referenceHex)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, 4+2*32)
	data = append(data, selMint...)
	data = append(data, padAddress(recipient)...)
	data = append(data, ref[:]...)
	return data, nil
}

// MintBatchCall packs a mintBatch(recipients[], references[]) call with
// parallel arrays.
func MintBatchCall(recipients []common.Address, referenceHexes []string) ([]byte, error) {
	if len(recipients) != len(referenceHexes) {
		return nil, fmt.Errorf("%w: mintBatch arrays must be parallel", domainerrors.ErrInvalidInput)
	}

	n := len(recipients)
	// Two dynamic arguments: head holds the two tail offsets.
	offsetA := big.NewInt(64)
	offsetB := big.NewInt(int64(64 + 32 + 32*n))

	data := make([]byte, 0, 4+32*(4+2*n))
	data = append(data, selMintBatch...)
	data = append(data, padBig(offsetA)...)
	data = append(data, padBig(offsetB)...)

	data = append(data, padBig(big.NewInt(int64(n)))...)
	for _, r := range recipients {
		data = append(data, padAddress(r)...)
	}

	data = append(data, padBig(big.NewInt(int64(n)))...)
	for _, h := range referenceHexes {
		ref, err := parseBytes32(h)
		if err != nil {
			return nil, err
		}
		data = append(data, ref[:]...)
	}
	return data, nil
}

// MintedCall packs the minted(reference) view call used to detect an
// already-executed mint before (re)submission.
func MintedCall(referenceHex string) ([]byte, error) {
	ref, err := parseBytes32(referenceHex)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, 4+32)
	data = append(data, selMinted...)
	data = append(data, ref[:]...)
	return data, nil
}

// DecodeBool decodes a single ABI-encoded boolean return value.
func DecodeBool(ret []byte) bool {
	if len(ret) < 32 {
		return false
	}
	return ret[31] != 0
}
