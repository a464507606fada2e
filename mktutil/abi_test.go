package mktutil

import (
	"math/big"
	"strings"
	"testing"
)

func TestSelector(t *testing.T) {
	// well-known selectors, easy to cross-check against any ABI tool
	cases := map[string]string{
		"transfer(address,uint256)": "0xa9059cbb",
		"totalSupply()":             "0x18160ddd",
		"ownerOf(uint256)":          "0x6352211e",
		"balanceOf(address)":        "0x70a08231",
	}
	for sig, want := range cases {
		if got := Selector(sig); got != want {
			t.Errorf("Selector(%q) = %s, want %s", sig, got, want)
		}
	}
}

func TestEventTopic(t *testing.T) {
	got := EventTopic("Transfer(address,address,uint256)")
	want := "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	if got != want {
		t.Errorf("EventTopic = %s, want %s", got, want)
	}
}

func TestEncodeCall(t *testing.T) {
	w := EncodeUint256(big.NewInt(5))
	if len(w) != 64 {
		t.Fatalf("word length %d, want 64", len(w))
	}
	data := EncodeCall("0x6352211e", w)
	if data != "0x6352211e"+strings.Repeat("0", 63)+"5" {
		t.Errorf("unexpected calldata %s", data)
	}
}

func TestEncodeAddress(t *testing.T) {
	addr := "0xA4F77aE2f6E33d1F4B6470BfAbF0fbD924525De1"
	w, err := EncodeAddress(addr)
	if err != nil {
		t.Fatal(err)
	}
	if len(w) != 64 {
		t.Fatalf("word length %d, want 64", len(w))
	}
	if !strings.HasSuffix(w, strings.ToLower(addr[2:])) {
		t.Errorf("encoded word %s does not end with address", w)
	}
	if _, err := EncodeAddress("0x1234"); err == nil {
		t.Error("short address should be rejected")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	w := EncodeUint256(big.NewInt(123456))
	buf, err := HexData("0x" + w)
	if err != nil {
		t.Fatal(err)
	}
	v, err := DecodeUint256(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int64() != 123456 {
		t.Errorf("got %s, want 123456", v)
	}
}

func TestDecodeString(t *testing.T) {
	// offset 32, length 5, "hello" padded to a word
	data := make([]byte, 96)
	data[31] = 32
	data[63] = 5
	copy(data[64:], "hello")
	s, err := DecodeString(data)
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello" {
		t.Errorf("got %q, want %q", s, "hello")
	}

	if _, err := DecodeString(data[:48]); err == nil {
		t.Error("short data should be rejected")
	}
}

func TestDecodeUint256Array(t *testing.T) {
	// single head word pointing at a 3-element array
	mk := func(vals ...int64) []byte {
		data := make([]byte, 32+32+len(vals)*32)
		data[31] = 32 // offset of array
		data[63] = byte(len(vals))
		for i, v := range vals {
			b := big.NewInt(v).Bytes()
			copy(data[64+(i+1)*32-len(b):], b)
		}
		return data
	}
	arr, err := DecodeUint256Array(mk(1, 2, 7), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(arr) != 3 || arr[0].Int64() != 1 || arr[2].Int64() != 7 {
		t.Errorf("unexpected array %v", arr)
	}

	empty, err := DecodeUint256Array(mk(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty array, got %v", empty)
	}
}

func TestDecodeAddressTrimsPadding(t *testing.T) {
	w, err := EncodeAddress("0x5F98cFE4d71F4D8cCad7bEF4B15b7906cb954464")
	if err != nil {
		t.Fatal(err)
	}
	buf, err := HexData("0x" + w)
	if err != nil {
		t.Fatal(err)
	}
	addr, err := DecodeAddress(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if addr != "0x5f98cfe4d71f4d8ccad7bef4b15b7906cb954464" {
		t.Errorf("got %s", addr)
	}
}
