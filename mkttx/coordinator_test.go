package mkttx

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktnet"
	"github.com/TheQuantumChronicle/libmarket/mktstore"
)

type fakeLedger struct {
	lk       sync.Mutex
	listed   map[string]bool
	prices   map[string]*big.Int
	offers   map[string]*mktintf.Offer
	owners   map[string]string
	approved bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		listed:   make(map[string]bool),
		prices:   make(map[string]*big.Int),
		offers:   make(map[string]*mktintf.Offer),
		owners:   make(map[string]string),
		approved: true,
	}
}

func (f *fakeLedger) TotalSupply(ctx context.Context) (uint64, error) { return 0, nil }

func (f *fakeLedger) OwnerOf(ctx context.Context, tokenId string) (string, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	return f.owners[tokenId], nil
}

func (f *fakeLedger) TokenIdsOwnedBy(ctx context.Context, addr string) ([]string, error) {
	return nil, nil
}

func (f *fakeLedger) IsListed(ctx context.Context, tokenId string) (bool, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	return f.listed[tokenId], nil
}

func (f *fakeLedger) SalePrice(ctx context.Context, tokenId string) (*big.Int, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	if p, ok := f.prices[tokenId]; ok {
		return p, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeLedger) HighestOffer(ctx context.Context, tokenId string) (*mktintf.Offer, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	if o, ok := f.offers[tokenId]; ok {
		return o, nil
	}
	return &mktintf.Offer{}, nil
}

func (f *fakeLedger) AllForSale(ctx context.Context) ([]mktintf.Listing, error) { return nil, nil }

func (f *fakeLedger) IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	return f.approved, nil
}

type fakePending struct {
	rec *mktintf.Receipt
	err error
}

func (p *fakePending) Hash() string { return "0xdeadbeef" }

func (p *fakePending) Wait(ctx context.Context) (*mktintf.Receipt, error) {
	return p.rec, p.err
}

type fakeSubmitter struct {
	lk       sync.Mutex
	calls    []mktintf.ContractCall
	err      error
	status   uint64
	onSubmit func(call mktintf.ContractCall)
}

func (s *fakeSubmitter) Submit(ctx context.Context, sess mktintf.Session, call mktintf.ContractCall) (mktintf.PendingTx, error) {
	s.lk.Lock()
	s.calls = append(s.calls, call)
	s.lk.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.onSubmit != nil {
		s.onSubmit(call)
	}
	return &fakePending{rec: &mktintf.Receipt{TxHash: "0xdeadbeef", Status: s.status, BlockNumber: 100}}, nil
}

func (s *fakeSubmitter) count() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.calls)
}

const (
	acctBuyer  = "0x1111111111111111111111111111111111111111"
	acctSeller = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func testSession() mktintf.Session {
	return mktintf.Session{Account: acctBuyer, ChainId: mktnet.MagmaChainId}
}

func testCoordinator(ledger *fakeLedger, sub *fakeSubmitter) (*Coordinator, *mktstore.Store) {
	store := mktstore.New()
	market := mktnet.NewMarket(nil) // calldata builders never touch the network
	return NewCoordinator(nil, ledger, sub, market, store), store
}

func TestBuyUpdatesStoreWithoutFullResync(t *testing.T) {
	ledger := newFakeLedger()
	price, _ := new(big.Int).SetString("2000000000000000000", 10)
	ledger.listed["3"] = true
	ledger.prices["3"] = price
	ledger.owners["3"] = acctSeller

	sub := &fakeSubmitter{status: 1}
	sub.onSubmit = func(call mktintf.ContractCall) {
		ledger.lk.Lock()
		defer ledger.lk.Unlock()
		delete(ledger.listed, "3")
		delete(ledger.prices, "3")
		ledger.owners["3"] = acctBuyer
	}

	c, store := testCoordinator(ledger, sub)
	store.Install([]*mktstore.NFTView{
		{TokenId: "3", Owner: acctSeller, IsListedForSale: true, Price: "2"},
	})

	if err := c.Buy(context.Background(), testSession(), "3"); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if c.State() != StateConfirmed {
		t.Errorf("state = %s, want confirmed", c.State())
	}
	if sub.count() != 1 {
		t.Fatalf("submitted %d calls, want 1", sub.count())
	}
	if sub.calls[0].Value == nil || sub.calls[0].Value.Cmp(price) != 0 {
		t.Error("sale price must ride along as the call value")
	}

	v, ok := store.Get("3")
	if !ok {
		t.Fatal("token 3 gone from store")
	}
	if !v.IsOwner || v.Owner != acctBuyer {
		t.Errorf("ownership not updated: owner=%s isOwner=%v", v.Owner, v.IsOwner)
	}
	if v.IsListedForSale || v.Price != "" {
		t.Error("listing should be cleared after purchase")
	}
	if v.Offer != nil {
		t.Error("offer slot should be cleared after purchase")
	}
	if sold := store.RecentlySold(); len(sold) != 1 || sold[0] != "3" {
		t.Errorf("recently sold = %v, want [3]", sold)
	}
}

func TestBuyRefusesUnlistedToken(t *testing.T) {
	ledger := newFakeLedger() // nothing listed
	sub := &fakeSubmitter{status: 1}
	c, store := testCoordinator(ledger, sub)
	store.Install([]*mktstore.NFTView{{TokenId: "3", Owner: acctSeller, IsListedForSale: true, Price: "2"}})

	err := c.Buy(context.Background(), testSession(), "3")
	var verr *mktintf.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want validation error, got %v", err)
	}
	if sub.count() != 0 {
		t.Error("nothing should have been submitted")
	}
	if c.State() != StateRejected {
		t.Errorf("state = %s, want rejected", c.State())
	}
}

func TestMakeOfferBelowCachedHighestFailsLocally(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	c, store := testCoordinator(ledger, sub)

	high, _ := new(big.Int).SetString("2000000000000000000", 10)
	store.Install([]*mktstore.NFTView{
		{TokenId: "5", Owner: acctSeller, Offer: &mktintf.Offer{Amount: high, Bidder: acctSeller}},
	})

	err := c.MakeOffer(context.Background(), testSession(), "5", "1")
	var verr *mktintf.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want validation error, got %v", err)
	}
	if sub.count() != 0 {
		t.Error("a losing offer must be rejected before any submission")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, a local rejection should never leave idle", c.State())
	}
}

func TestMakeOfferRechecksLedgerHighest(t *testing.T) {
	ledger := newFakeLedger()
	high, _ := new(big.Int).SetString("3000000000000000000", 10)
	ledger.offers["5"] = &mktintf.Offer{Amount: high, Bidder: acctSeller}

	sub := &fakeSubmitter{status: 1}
	c, store := testCoordinator(ledger, sub)
	// store has no cached offer, so only the ledger re-check can catch this
	store.Install([]*mktstore.NFTView{{TokenId: "5", Owner: acctSeller}})

	err := c.MakeOffer(context.Background(), testSession(), "5", "2")
	var verr *mktintf.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want validation error, got %v", err)
	}
	if sub.count() != 0 {
		t.Error("nothing should have been submitted")
	}
}

func TestMakeOfferEscrowsValue(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	sub.onSubmit = func(call mktintf.ContractCall) {
		ledger.lk.Lock()
		defer ledger.lk.Unlock()
		ledger.offers["5"] = &mktintf.Offer{Amount: call.Value, Bidder: acctBuyer}
	}
	c, store := testCoordinator(ledger, sub)
	store.Install([]*mktstore.NFTView{{TokenId: "5", Owner: acctSeller}})

	if err := c.MakeOffer(context.Background(), testSession(), "5", "1.5"); err != nil {
		t.Fatalf("MakeOffer: %v", err)
	}
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	if sub.count() != 1 || sub.calls[0].Value.Cmp(want) != 0 {
		t.Error("offer amount must be escrowed as the call value")
	}
	v, _ := store.Get("5")
	if v.Offer == nil || v.Offer.Bidder != acctBuyer {
		t.Error("store should reflect the new offer")
	}
}

func TestUserDeclineMapsToRejected(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{err: mktintf.ErrUserDeclined}
	c, _ := testCoordinator(ledger, sub)

	err := c.Mint(context.Background(), testSession(), 1)
	if !errors.Is(err, mktintf.ErrUserDeclined) {
		t.Fatalf("want ErrUserDeclined, got %v", err)
	}
	if c.State() != StateRejected {
		t.Errorf("state = %s, want rejected", c.State())
	}
}

func TestRevertedReceiptMapsToReverted(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 0}
	c, _ := testCoordinator(ledger, sub)

	err := c.Mint(context.Background(), testSession(), 1)
	if !errors.Is(err, mktintf.ErrReverted) {
		t.Fatalf("want ErrReverted, got %v", err)
	}
	if c.State() != StateReverted {
		t.Errorf("state = %s, want reverted", c.State())
	}
}

func TestMintCountBounds(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	c, _ := testCoordinator(ledger, sub)

	for _, count := range []uint64{0, 11, 100} {
		err := c.Mint(context.Background(), testSession(), count)
		var verr *mktintf.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("count %d: want validation error, got %v", count, err)
		}
	}
	if sub.count() != 0 {
		t.Error("nothing should have been submitted")
	}
}

func TestMintAttachesMintPrice(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	c, _ := testCoordinator(ledger, sub)

	if err := c.Mint(context.Background(), testSession(), 2); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	// 2 x 0.25 LAVA
	want, _ := new(big.Int).SetString("500000000000000000", 10)
	if sub.count() != 1 || sub.calls[0].Value.Cmp(want) != 0 {
		t.Errorf("mint value = %v, want %v", sub.calls[0].Value, want)
	}
}

func TestListRequiresOwnership(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	c, store := testCoordinator(ledger, sub)
	store.Install([]*mktstore.NFTView{{TokenId: "7", Owner: acctSeller}})

	err := c.List(context.Background(), testSession(), "7", "1")
	var verr *mktintf.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want validation error, got %v", err)
	}
	if sub.count() != 0 {
		t.Error("nothing should have been submitted")
	}
}

func TestListRejectsBadPrice(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	c, _ := testCoordinator(ledger, sub)

	for _, price := range []string{"", "abc", "0", "-1"} {
		err := c.List(context.Background(), testSession(), "7", price)
		var verr *mktintf.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("price %q: want validation error, got %v", price, err)
		}
	}
}

func TestListGrantsApprovalFirst(t *testing.T) {
	ledger := newFakeLedger()
	ledger.approved = false
	sub := &fakeSubmitter{status: 1}
	sub.onSubmit = func(call mktintf.ContractCall) {
		ledger.lk.Lock()
		defer ledger.lk.Unlock()
		ledger.listed["7"] = true
		ledger.prices["7"], _ = new(big.Int).SetString("1000000000000000000", 10)
	}
	c, store := testCoordinator(ledger, sub)
	store.Install([]*mktstore.NFTView{{TokenId: "7", Owner: acctBuyer, IsOwner: true}})

	if err := c.List(context.Background(), testSession(), "7", "1"); err != nil {
		t.Fatalf("List: %v", err)
	}
	// first the setApprovalForAll call, then the listing itself
	if sub.count() != 2 {
		t.Fatalf("submitted %d calls, want 2", sub.count())
	}
	v, _ := store.Get("7")
	if !v.IsListedForSale || v.Price != "1" {
		t.Errorf("listing not reflected: listed=%v price=%q", v.IsListedForSale, v.Price)
	}
}

func TestTransferRecipientChecks(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	c, _ := testCoordinator(ledger, sub)

	cases := []struct {
		name string
		to   string
	}{
		{"garbage", "not-an-address"},
		{"zero", mktintf.ZeroAddress},
		{"self", acctBuyer},
	}
	for _, tc := range cases {
		err := c.Transfer(context.Background(), testSession(), "1", tc.to)
		var verr *mktintf.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: want validation error, got %v", tc.name, err)
		}
	}
	if sub.count() != 0 {
		t.Error("nothing should have been submitted")
	}
}

func TestAcceptOfferRequiresStandingOffer(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	c, store := testCoordinator(ledger, sub)
	store.Install([]*mktstore.NFTView{{TokenId: "9", Owner: acctBuyer, IsOwner: true}})

	err := c.AcceptOffer(context.Background(), testSession(), "9")
	var verr *mktintf.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want validation error, got %v", err)
	}
	if sub.count() != 0 {
		t.Error("nothing should have been submitted")
	}
}

func TestAcceptOfferHandsTokenToBidder(t *testing.T) {
	ledger := newFakeLedger()
	amount, _ := new(big.Int).SetString("1000000000000000000", 10)
	ledger.offers["9"] = &mktintf.Offer{Amount: amount, Bidder: acctSeller}

	sub := &fakeSubmitter{status: 1}
	sub.onSubmit = func(call mktintf.ContractCall) {
		ledger.lk.Lock()
		defer ledger.lk.Unlock()
		delete(ledger.offers, "9")
		ledger.owners["9"] = acctSeller
	}
	c, store := testCoordinator(ledger, sub)
	store.Install([]*mktstore.NFTView{{TokenId: "9", Owner: acctBuyer, IsOwner: true, Offer: ledger.offers["9"]}})

	if err := c.AcceptOffer(context.Background(), testSession(), "9"); err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	v, _ := store.Get("9")
	if v.IsOwner || v.Owner != acctSeller {
		t.Errorf("token should now belong to the bidder, owner=%s", v.Owner)
	}
	if sold := store.RecentlySold(); len(sold) != 1 || sold[0] != "9" {
		t.Errorf("recently sold = %v, want [9]", sold)
	}
}

func TestOnlyOneWriteInFlight(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	c, _ := testCoordinator(ledger, sub)

	c.lk.Lock()
	c.state = StatePendingConfirmation
	c.lk.Unlock()

	err := c.Mint(context.Background(), testSession(), 1)
	var verr *mktintf.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want validation error while busy, got %v", err)
	}
	if sub.count() != 0 {
		t.Error("nothing should have been submitted")
	}

	// a terminal state does not block the next write
	c.lk.Lock()
	c.state = StateConfirmed
	c.lk.Unlock()
	if err := c.Mint(context.Background(), testSession(), 1); err != nil {
		t.Fatalf("Mint after terminal state: %v", err)
	}
}

func TestPrecheckBeforeAnything(t *testing.T) {
	ledger := newFakeLedger()
	sub := &fakeSubmitter{status: 1}
	c, _ := testCoordinator(ledger, sub)

	sess := testSession()
	sess.Account = ""
	if err := c.Mint(context.Background(), sess, 1); !errors.Is(err, mktintf.ErrNoAccount) {
		t.Errorf("want ErrNoAccount, got %v", err)
	}

	sess = testSession()
	sess.ChainId = "1"
	if err := c.Buy(context.Background(), sess, "1"); !errors.Is(err, mktintf.ErrNetworkMismatch) {
		t.Errorf("want ErrNetworkMismatch, got %v", err)
	}
	if sub.count() != 0 {
		t.Error("nothing should have been submitted")
	}
}
