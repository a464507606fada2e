package mktnft_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/TheQuantumChronicle/libmarket/mktbase"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktnft"
)

func tempEnv(t *testing.T) mktintf.Env {
	t.Helper()
	raw, err := mktbase.InitTempEnv()
	if err != nil {
		t.Fatalf("InitTempEnv: %v", err)
	}
	t.Cleanup(func() { mktbase.CleanupTempEnv(raw) })
	return raw.(mktintf.Env)
}

func TestCacheFetchesOnce(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"name":"Lava Rock #7","description":"volcanic","image":"ipfs://img/7.png","attributes":[{"trait_type":"Heat","value":"extreme"}]}`)
	}))
	defer srv.Close()

	e := tempEnv(t)
	c, err := mktnft.NewCache(e, srv.URL)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	rec, err := c.Get(context.Background(), "7")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Name != "Lava Rock #7" || rec.TokenId != "7" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if len(rec.Attributes) != 1 || rec.Attributes[0].TraitType != "Heat" {
		t.Errorf("attributes not decoded: %+v", rec.Attributes)
	}

	// second read is memoized
	if _, err := c.Get(context.Background(), "7"); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestCacheSurvivesRestart(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"name":"Lava Rock #2"}`)
	}))
	defer srv.Close()

	e := tempEnv(t)
	c1, err := mktnft.NewCache(e, srv.URL)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if _, err := c1.Get(context.Background(), "2"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// a fresh cache over the same env has an empty memo but a populated row
	c2, err := mktnft.NewCache(e, srv.URL)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	rec, err := c2.Get(context.Background(), "2")
	if err != nil {
		t.Fatalf("Get after restart: %v", err)
	}
	if rec.Name != "Lava Rock #2" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestCacheFailureIsNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
			return
		}
		fmt.Fprint(w, `{"name":"Lava Rock #9"}`)
	}))
	defer srv.Close()

	e := tempEnv(t)
	c, err := mktnft.NewCache(e, srv.URL)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	if _, err := c.Get(context.Background(), "9"); err == nil {
		t.Fatal("expected an error while the gateway is down")
	}

	// once the gateway recovers the same token resolves
	fail.Store(false)
	rec, err := c.Get(context.Background(), "9")
	if err != nil {
		t.Fatalf("Get after recovery: %v", err)
	}
	if rec.Name != "Lava Rock #9" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestCacheRejectsGarbageMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `this is not json`)
	}))
	defer srv.Close()

	e := tempEnv(t)
	c, err := mktnft.NewCache(e, srv.URL)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	_, err = c.Get(context.Background(), "1")
	if err == nil {
		t.Fatal("expected an error for undecodable metadata")
	}
	var rerr *mktintf.RemoteReadError
	if !errors.As(err, &rerr) {
		t.Errorf("want RemoteReadError, got %T", err)
	}
}
