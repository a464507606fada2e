package mktnet

import (
	"math/big"

	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

// Calldata builders for the write side. Each returns a prepared
// ContractCall for the transaction coordinator to submit.

// MintPriceWei is the fixed per-token mint price charged by the NFT
// contract.
var MintPriceWei = new(big.Int).SetUint64(250000000000000000) // 0.25 LAVA

func (m *Market) MintCall(count uint64) (mktintf.ContractCall, error) {
	n := new(big.Int).SetUint64(count)
	payment := new(big.Int).Mul(MintPriceWei, n)
	return mktintf.ContractCall{
		To:    m.NFTContract,
		Data:  mktutil.EncodeCall(mintSelector, mktutil.EncodeUint256(n)),
		Value: payment,
	}, nil
}

func (m *Market) ListCall(tokenId string, priceWei *big.Int) (mktintf.ContractCall, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	return mktintf.ContractCall{
		To:   m.MarketContract,
		Data: mktutil.EncodeCall(listSelector, w, mktutil.EncodeUint256(priceWei)),
	}, nil
}

func (m *Market) CancelSaleCall(tokenId string) (mktintf.ContractCall, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	return mktintf.ContractCall{
		To:   m.MarketContract,
		Data: mktutil.EncodeCall(cancelSaleSelector, w),
	}, nil
}

// MakeOfferCall escrows the offer amount with the call.
func (m *Market) MakeOfferCall(tokenId string, amountWei *big.Int) (mktintf.ContractCall, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	return mktintf.ContractCall{
		To:    m.MarketContract,
		Data:  mktutil.EncodeCall(makeOfferSelector, w, mktutil.EncodeUint256(amountWei)),
		Value: amountWei,
	}, nil
}

func (m *Market) AcceptOfferCall(tokenId string) (mktintf.ContractCall, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	return mktintf.ContractCall{
		To:   m.MarketContract,
		Data: mktutil.EncodeCall(acceptOfferSelector, w),
	}, nil
}

func (m *Market) CancelOfferCall(tokenId string, offerId uint64) (mktintf.ContractCall, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	return mktintf.ContractCall{
		To:   m.MarketContract,
		Data: mktutil.EncodeCall(cancelOfferSelector, w, mktutil.EncodeUint256(new(big.Int).SetUint64(offerId))),
	}, nil
}

// BuyCall attaches the current sale price as payment.
func (m *Market) BuyCall(tokenId string, priceWei *big.Int) (mktintf.ContractCall, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	return mktintf.ContractCall{
		To:    m.MarketContract,
		Data:  mktutil.EncodeCall(buySelector, w),
		Value: priceWei,
	}, nil
}

func (m *Market) SetApprovalForAllCall(operator string, approved bool) (mktintf.ContractCall, error) {
	w, err := mktutil.EncodeAddress(operator)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	return mktintf.ContractCall{
		To:   m.NFTContract,
		Data: mktutil.EncodeCall(setApprovalForAllSelector, w, mktutil.EncodeBool(approved)),
	}, nil
}

func (m *Market) TransferCall(from, to, tokenId string) (mktintf.ContractCall, error) {
	wf, err := mktutil.EncodeAddress(from)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	wt, err := mktutil.EncodeAddress(to)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	wi, err := tokenWord(tokenId)
	if err != nil {
		return mktintf.ContractCall{}, err
	}
	return mktintf.ContractCall{
		To:   m.NFTContract,
		Data: mktutil.EncodeCall(safeTransferFromSelector, wf, wt, wi),
	}, nil
}
