package mktutil

import (
	"math/big"
	"testing"
)

func TestParseEther(t *testing.T) {
	wei, err := ParseEther("1.5")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	if wei.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", wei, want)
	}

	small, err := ParseEther("0.000000000000000001")
	if err != nil {
		t.Fatal(err)
	}
	if small.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("got %s, want 1", small)
	}

	for _, bad := range []string{"", "abc", "0", "-1", "0.0000000000000000001"} {
		if _, err := ParseEther(bad); err == nil {
			t.Errorf("ParseEther(%q) should fail", bad)
		}
	}
}

func TestFormatEther(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	if s := FormatEther(wei); s != "1.5" {
		t.Errorf("got %s, want 1.5", s)
	}
	if s := FormatEther(big.NewInt(1)); s != "0.000000000000000001" {
		t.Errorf("got %s", s)
	}
	if s := FormatEther(nil); s != "" {
		t.Errorf("nil should format empty, got %s", s)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, v := range []string{"0.25", "1", "1000", "2.125"} {
		wei, err := ParseEther(v)
		if err != nil {
			t.Fatal(err)
		}
		if got := FormatEther(wei); got != v {
			t.Errorf("round trip %s -> %s", v, got)
		}
	}
}
