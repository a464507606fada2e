package mktnet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ModChain/ethrpc"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

// Well-known ERC-721 selectors.
const (
	totalSupplySelector       = "0x18160ddd" // totalSupply()
	ownerOfSelector           = "0x6352211e" // ownerOf(uint256)
	isApprovedForAllSelector  = "0xe985e9c5" // isApprovedForAll(address,address)
	setApprovalForAllSelector = "0xa22cb465" // setApprovalForAll(address,bool)
	safeTransferFromSelector  = "0x42842e0e" // safeTransferFrom(address,address,uint256)
)

// Marketplace selectors, derived from the contract ABI signatures.
var (
	tokenIdsOwnedBySelector = mktutil.Selector("getTokenIdsOwnedBy(address)")
	isListedSelector        = mktutil.Selector("isListed(uint256)")
	salePriceSelector       = mktutil.Selector("getSalePrice(uint256)")
	highestOfferSelector    = mktutil.Selector("getHighestOffer(uint256)")
	allForSaleSelector      = mktutil.Selector("getAllNFTsForSale()")
	mintSelector            = mktutil.Selector("mintNFT(uint256)")
	listSelector            = mktutil.Selector("listNFTForSale(uint256,uint256)")
	cancelSaleSelector      = mktutil.Selector("cancelSale(uint256)")
	makeOfferSelector       = mktutil.Selector("makeOffer(uint256,uint256)")
	acceptOfferSelector     = mktutil.Selector("acceptOffer(uint256)")
	cancelOfferSelector     = mktutil.Selector("cancelOffer(uint256,uint256)")
	buySelector             = mktutil.Selector("buyNFT(uint256)")
)

// Market is the read gateway over the NFT and marketplace contracts, plus
// the calldata builders for the write side.
type Market struct {
	Net            *Network
	NFTContract    string
	MarketContract string
}

func NewMarket(n *Network) *Market {
	return &Market{
		Net:            n,
		NFTContract:    NFTContractAddress,
		MarketContract: MarketContractAddress,
	}
}

func tokenWord(tokenId string) (string, error) {
	v, ok := new(big.Int).SetString(tokenId, 10)
	if !ok || v.Sign() < 0 {
		return "", fmt.Errorf("invalid token id %q", tokenId)
	}
	return mktutil.EncodeUint256(v), nil
}

func (m *Market) call(ctx context.Context, to, data string) ([]byte, error) {
	param := map[string]string{"to": to, "data": data}
	raw, err := ethrpc.ReadString(m.Net.DoRPC(ctx, "eth_call", param, "latest"))
	if err != nil {
		return nil, err
	}
	return mktutil.HexData(raw)
}

func (m *Market) TotalSupply(ctx context.Context) (uint64, error) {
	buf, err := m.call(ctx, m.NFTContract, totalSupplySelector)
	if err != nil {
		return 0, &mktintf.RemoteReadError{Op: "totalSupply", Err: err}
	}
	v, err := mktutil.DecodeUint256(buf, 0)
	if err != nil {
		return 0, &mktintf.RemoteReadError{Op: "totalSupply", Err: err}
	}
	return v.Uint64(), nil
}

func (m *Market) OwnerOf(ctx context.Context, tokenId string) (string, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return "", err
	}
	buf, err := m.call(ctx, m.NFTContract, mktutil.EncodeCall(ownerOfSelector, w))
	if err != nil {
		return "", &mktintf.RemoteReadError{Op: "ownerOf " + tokenId, Err: err}
	}
	addr, err := mktutil.DecodeAddress(buf, 0)
	if err != nil {
		return "", &mktintf.RemoteReadError{Op: "ownerOf " + tokenId, Err: err}
	}
	return addr, nil
}

func (m *Market) TokenIdsOwnedBy(ctx context.Context, addr string) ([]string, error) {
	w, err := mktutil.EncodeAddress(addr)
	if err != nil {
		return nil, err
	}
	buf, err := m.call(ctx, m.NFTContract, mktutil.EncodeCall(tokenIdsOwnedBySelector, w))
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getTokenIdsOwnedBy", Err: err}
	}
	ids, err := mktutil.DecodeUint256Array(buf, 0)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getTokenIdsOwnedBy", Err: err}
	}
	res := make([]string, len(ids))
	for i, id := range ids {
		res[i] = id.String()
	}
	return res, nil
}

func (m *Market) IsListed(ctx context.Context, tokenId string) (bool, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return false, err
	}
	buf, err := m.call(ctx, m.MarketContract, mktutil.EncodeCall(isListedSelector, w))
	if err != nil {
		return false, &mktintf.RemoteReadError{Op: "isListed " + tokenId, Err: err}
	}
	b, err := mktutil.DecodeBool(buf, 0)
	if err != nil {
		return false, &mktintf.RemoteReadError{Op: "isListed " + tokenId, Err: err}
	}
	return b, nil
}

func (m *Market) SalePrice(ctx context.Context, tokenId string) (*big.Int, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return nil, err
	}
	buf, err := m.call(ctx, m.MarketContract, mktutil.EncodeCall(salePriceSelector, w))
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getSalePrice " + tokenId, Err: err}
	}
	v, err := mktutil.DecodeUint256(buf, 0)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getSalePrice " + tokenId, Err: err}
	}
	return v, nil
}

func (m *Market) HighestOffer(ctx context.Context, tokenId string) (*mktintf.Offer, error) {
	w, err := tokenWord(tokenId)
	if err != nil {
		return nil, err
	}
	buf, err := m.call(ctx, m.MarketContract, mktutil.EncodeCall(highestOfferSelector, w))
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getHighestOffer " + tokenId, Err: err}
	}
	amount, err := mktutil.DecodeUint256(buf, 0)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getHighestOffer " + tokenId, Err: err}
	}
	bidder, err := mktutil.DecodeAddress(buf, 1)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getHighestOffer " + tokenId, Err: err}
	}
	return &mktintf.Offer{Amount: amount, Bidder: bidder}, nil
}

// AllForSale reads the marketplace enumeration, three parallel arrays of
// token id, price and seller.
func (m *Market) AllForSale(ctx context.Context) ([]mktintf.Listing, error) {
	buf, err := m.call(ctx, m.MarketContract, allForSaleSelector)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getAllNFTsForSale", Err: err}
	}
	ids, err := mktutil.DecodeUint256Array(buf, 0)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getAllNFTsForSale", Err: err}
	}
	prices, err := mktutil.DecodeUint256Array(buf, 1)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getAllNFTsForSale", Err: err}
	}
	sellers, err := mktutil.DecodeAddressArray(buf, 2)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "getAllNFTsForSale", Err: err}
	}
	if len(prices) != len(ids) || len(sellers) != len(ids) {
		return nil, &mktintf.RemoteReadError{Op: "getAllNFTsForSale", Err: fmt.Errorf("mismatched arrays: %d ids, %d prices, %d sellers", len(ids), len(prices), len(sellers))}
	}
	res := make([]mktintf.Listing, len(ids))
	for i := range ids {
		res[i] = mktintf.Listing{TokenId: ids[i].String(), Price: prices[i], Seller: sellers[i]}
	}
	return res, nil
}

func (m *Market) IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error) {
	wo, err := mktutil.EncodeAddress(owner)
	if err != nil {
		return false, err
	}
	wp, err := mktutil.EncodeAddress(operator)
	if err != nil {
		return false, err
	}
	buf, err := m.call(ctx, m.NFTContract, mktutil.EncodeCall(isApprovedForAllSelector, wo, wp))
	if err != nil {
		return false, &mktintf.RemoteReadError{Op: "isApprovedForAll", Err: err}
	}
	b, err := mktutil.DecodeBool(buf, 0)
	if err != nil {
		return false, &mktintf.RemoteReadError{Op: "isApprovedForAll", Err: err}
	}
	return b, nil
}
