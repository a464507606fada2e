package mktnet

import (
	"math/big"
	"strings"
	"testing"

	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

func TestTokenWord(t *testing.T) {
	w, err := tokenWord("7")
	if err != nil {
		t.Fatalf("tokenWord: %v", err)
	}
	if w != strings.Repeat("0", 63)+"7" {
		t.Errorf("unexpected word %s", w)
	}
	for _, bad := range []string{"", "abc", "-1", "0x1"} {
		if _, err := tokenWord(bad); err == nil {
			t.Errorf("tokenWord(%q) should fail", bad)
		}
	}
}

func TestErc721Selectors(t *testing.T) {
	cases := []struct {
		sel string
		sig string
	}{
		{totalSupplySelector, "totalSupply()"},
		{ownerOfSelector, "ownerOf(uint256)"},
		{isApprovedForAllSelector, "isApprovedForAll(address,address)"},
		{setApprovalForAllSelector, "setApprovalForAll(address,bool)"},
		{safeTransferFromSelector, "safeTransferFrom(address,address,uint256)"},
	}
	for _, c := range cases {
		if got := mktutil.Selector(c.sig); got != c.sel {
			t.Errorf("selector for %s is %s, const says %s", c.sig, got, c.sel)
		}
	}
}

func TestMintCallPayment(t *testing.T) {
	m := NewMarket(nil)
	call, err := m.MintCall(3)
	if err != nil {
		t.Fatalf("MintCall: %v", err)
	}
	if call.To != NFTContractAddress {
		t.Errorf("mint goes to the NFT contract, got %s", call.To)
	}
	want := new(big.Int).Mul(MintPriceWei, big.NewInt(3))
	if call.Value.Cmp(want) != 0 {
		t.Errorf("payment = %v, want %v", call.Value, want)
	}
	if !strings.HasPrefix(call.Data, mintSelector) {
		t.Errorf("calldata %s does not start with the mint selector", call.Data)
	}
	if len(call.Data) != len(mintSelector)+64 {
		t.Errorf("calldata should carry exactly one word, got %d hex chars", len(call.Data)-len(mintSelector))
	}
}

func TestListCallEncodesPrice(t *testing.T) {
	m := NewMarket(nil)
	price, _ := new(big.Int).SetString("1500000000000000000", 10)
	call, err := m.ListCall("42", price)
	if err != nil {
		t.Fatalf("ListCall: %v", err)
	}
	if call.To != MarketContractAddress {
		t.Errorf("listing goes to the marketplace contract, got %s", call.To)
	}
	if call.Value != nil {
		t.Error("listing carries no payment")
	}
	want := mktutil.EncodeCall(listSelector, mktutil.EncodeUint256(big.NewInt(42)), mktutil.EncodeUint256(price))
	if call.Data != want {
		t.Errorf("calldata mismatch:\n got %s\nwant %s", call.Data, want)
	}
}

func TestBuyAndOfferAttachValue(t *testing.T) {
	m := NewMarket(nil)
	price := big.NewInt(1234)

	buy, err := m.BuyCall("1", price)
	if err != nil {
		t.Fatalf("BuyCall: %v", err)
	}
	if buy.Value.Cmp(price) != 0 {
		t.Error("buy must attach the sale price")
	}

	offer, err := m.MakeOfferCall("1", price)
	if err != nil {
		t.Fatalf("MakeOfferCall: %v", err)
	}
	if offer.Value.Cmp(price) != 0 {
		t.Error("an offer escrows its amount")
	}
}

func TestTransferCallRejectsBadAddress(t *testing.T) {
	m := NewMarket(nil)
	if _, err := m.TransferCall("nope", "0x1111111111111111111111111111111111111111", "1"); err == nil {
		t.Error("bad from address should fail")
	}
	if _, err := m.TransferCall("0x1111111111111111111111111111111111111111", "nope", "1"); err == nil {
		t.Error("bad to address should fail")
	}
	call, err := m.TransferCall(
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222", "9")
	if err != nil {
		t.Fatalf("TransferCall: %v", err)
	}
	if call.To != NFTContractAddress {
		t.Errorf("transfer goes to the NFT contract, got %s", call.To)
	}
	// selector + from + to + tokenId
	if len(call.Data) != len(safeTransferFromSelector)+3*64 {
		t.Errorf("calldata should carry three words, got %d hex chars", len(call.Data)-len(safeTransferFromSelector))
	}
}

func TestDecodeMarketLog(t *testing.T) {
	idWord := "0x" + strings.Repeat("0", 62) + "2a" // 42

	name, id, ok := decodeMarketLog([]string{soldTopic, idWord})
	if !ok || name != "NFTSold" || id != "42" {
		t.Errorf("sold log decoded as %s/%s/%v", name, id, ok)
	}

	// nodes disagree on topic casing
	name, id, ok = decodeMarketLog([]string{"0x" + strings.ToUpper(listedTopic[2:]), idWord})
	if !ok || name != "NFTListed" || id != "42" {
		t.Errorf("uppercase topic decoded as %s/%s/%v", name, id, ok)
	}

	if _, _, ok := decodeMarketLog([]string{saleCancelledTopic}); ok {
		t.Error("a log without an indexed token id should not decode")
	}
	if _, _, ok := decodeMarketLog([]string{mktutil.EventTopic("Transfer(address,address,uint256)"), idWord}); ok {
		t.Error("unrelated topics should not decode")
	}
	if _, _, ok := decodeMarketLog(nil); ok {
		t.Error("empty topics should not decode")
	}
}
