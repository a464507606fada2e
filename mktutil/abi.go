package mktutil

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/KarpelesLab/cryptutil"
	"golang.org/x/crypto/sha3"
)

// Minimal ABI plumbing for the eth_call surface we use: 4-byte selectors,
// 32-byte words, and the handful of return shapes the two contracts expose.

// Selector returns the 0x-prefixed 4-byte selector for a solidity function
// signature, e.g. Selector("isListed(uint256)").
func Selector(signature string) string {
	h := cryptutil.Hash([]byte(signature), sha3.NewLegacyKeccak256)
	return "0x" + hex.EncodeToString(h[:4])
}

// EventTopic returns the full 32-byte topic hash for an event signature,
// e.g. EventTopic("NFTSaleCancelled(uint256,address)").
func EventTopic(signature string) string {
	h := cryptutil.Hash([]byte(signature), sha3.NewLegacyKeccak256)
	return "0x" + hex.EncodeToString(h)
}

// EncodeUint256 renders v as a 32-byte padded hex word.
func EncodeUint256(v *big.Int) string {
	return fmt.Sprintf("%064x", v)
}

// EncodeAddress renders a 0x-prefixed address as a 32-byte padded hex word.
func EncodeAddress(addr string) (string, error) {
	s := strings.TrimPrefix(strings.ToLower(addr), "0x")
	if len(s) != 40 {
		return "", fmt.Errorf("invalid address length %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}
	return strings.Repeat("0", 24) + s, nil
}

func EncodeBool(b bool) string {
	if b {
		return strings.Repeat("0", 63) + "1"
	}
	return strings.Repeat("0", 64)
}

// EncodeCall concatenates a selector and pre-encoded argument words into
// calldata suitable for eth_call / transaction data.
func EncodeCall(selector string, words ...string) string {
	var sb strings.Builder
	sb.WriteString(selector)
	for _, w := range words {
		sb.WriteString(w)
	}
	return sb.String()
}

// HexData decodes a 0x-prefixed eth_call result into raw bytes.
func HexData(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(s)
}

// DecodeWord extracts the i-th 32-byte word of an ABI-encoded result.
func DecodeWord(data []byte, i int) ([]byte, error) {
	if len(data) < (i+1)*32 {
		return nil, fmt.Errorf("short ABI data: need word %d, got %d bytes", i, len(data))
	}
	return data[i*32 : (i+1)*32], nil
}

func DecodeUint256(data []byte, i int) (*big.Int, error) {
	w, err := DecodeWord(data, i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

func DecodeBool(data []byte, i int) (bool, error) {
	v, err := DecodeUint256(data, i)
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

func DecodeAddress(data []byte, i int) (string, error) {
	w, err := DecodeWord(data, i)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(w[12:]), nil
}

// DecodeString extracts a single string return value (offset + length +
// bytes layout).
func DecodeString(data []byte) (string, error) {
	if len(data) < 64 {
		return "", fmt.Errorf("invalid eth_call response: insufficient data for offset and length, got %d bytes", len(data))
	}
	length := new(big.Int).SetBytes(data[32:64]).Uint64()
	if uint64(len(data)) < 64+length {
		return "", fmt.Errorf("invalid eth_call response: data length (%d) less than specified string length (%d) + 64", len(data), length)
	}
	return string(data[64 : 64+length]), nil
}

// DecodeUint256Array resolves the dynamic uint256[] whose offset sits at
// head word headIndex.
func DecodeUint256Array(data []byte, headIndex int) ([]*big.Int, error) {
	elems, err := arrayElems(data, headIndex)
	if err != nil {
		return nil, err
	}
	res := make([]*big.Int, len(elems))
	for i, w := range elems {
		res[i] = new(big.Int).SetBytes(w)
	}
	return res, nil
}

// DecodeAddressArray resolves the dynamic address[] whose offset sits at
// head word headIndex.
func DecodeAddressArray(data []byte, headIndex int) ([]string, error) {
	elems, err := arrayElems(data, headIndex)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(elems))
	for i, w := range elems {
		res[i] = "0x" + hex.EncodeToString(w[12:])
	}
	return res, nil
}

func arrayElems(data []byte, headIndex int) ([][]byte, error) {
	off, err := DecodeUint256(data, headIndex)
	if err != nil {
		return nil, err
	}
	base := int(off.Uint64())
	if base+32 > len(data) {
		return nil, fmt.Errorf("array offset %d out of range (%d bytes)", base, len(data))
	}
	ln := int(new(big.Int).SetBytes(data[base : base+32]).Uint64())
	end := base + 32 + ln*32
	if end > len(data) {
		return nil, fmt.Errorf("array of %d elements exceeds data (%d bytes)", ln, len(data))
	}
	elems := make([][]byte, ln)
	for i := 0; i < ln; i++ {
		start := base + 32 + i*32
		elems[i] = data[start : start+32]
	}
	return elems, nil
}
