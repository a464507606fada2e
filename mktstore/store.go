package mktstore

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktnft"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

const perPage = 25

// NFTView is the UI-facing aggregate for one token. Views handed out by the
// store are copies; only the engine and the coordinator write back, through
// Install/Merge and the per-token mutators.
type NFTView struct {
	TokenId         string         `json:"tokenId"`
	Metadata        *mktnft.Record `json:"metadata,omitempty"`
	Owner           string         `json:"owner,omitempty"`
	IsListedForSale bool           `json:"isListedForSale"`
	Price           string         `json:"price,omitempty"` // ether decimal string, empty when unlisted
	Offer           *mktintf.Offer `json:"offer,omitempty"`
	IsOwner         bool           `json:"isOwner"`
	CanMakeOffer    bool           `json:"canMakeOffer"`
	Loading         bool           `json:"loading"`
}

// Derive recomputes the ownership-derived fields against the connected
// account.
func (v *NFTView) Derive(account string) {
	v.IsOwner = v.Owner != "" && strings.EqualFold(v.Owner, account)
	v.CanMakeOffer = !v.IsOwner
}

// Store is the single source of truth for the current NFTView list. TokenId
// is unique across the set; order is the insertion order of the most recent
// Install or Merge.
type Store struct {
	lk    sync.Mutex
	views []*NFTView
	index map[string]int
	page  int
	sold  []string // most recent first
}

func New() *Store {
	return &Store{index: make(map[string]int), page: 1}
}

// Install atomically replaces the full set. Duplicate token ids within the
// batch collapse to the last occurrence.
func (s *Store) Install(entries []*NFTView) {
	s.lk.Lock()
	s.views = s.views[:0]
	s.index = make(map[string]int, len(entries))
	for _, v := range entries {
		c := *v
		if i, ok := s.index[c.TokenId]; ok {
			s.views[i] = &c
			continue
		}
		s.index[c.TokenId] = len(s.views)
		s.views = append(s.views, &c)
	}
	n := len(s.views)
	s.lk.Unlock()

	go mktutil.BroadcastMsg("nfts_changed", map[string]any{"count": n})
}

// Merge folds entries into the current set without discarding absent keys.
// An existing token id is replaced in place with the newer value, a new one
// is appended. Merging the same batch twice is a no-op the second time.
func (s *Store) Merge(entries []*NFTView) {
	s.lk.Lock()
	for _, v := range entries {
		c := *v
		if i, ok := s.index[c.TokenId]; ok {
			s.views[i] = &c
			continue
		}
		s.index[c.TokenId] = len(s.views)
		s.views = append(s.views, &c)
	}
	n := len(s.views)
	s.lk.Unlock()

	go mktutil.BroadcastMsg("nfts_changed", map[string]any{"count": n})
}

// ClearLoading marks every view as done loading. Used when a pass that
// installed placeholders cannot finish hydrating them.
func (s *Store) ClearLoading() {
	s.lk.Lock()
	defer s.lk.Unlock()
	for _, v := range s.views {
		v.Loading = false
	}
}

// Remove drops a token from the set, keeping the order of the rest.
func (s *Store) Remove(tokenId string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	i, ok := s.index[tokenId]
	if !ok {
		return
	}
	s.views = append(s.views[:i], s.views[i+1:]...)
	delete(s.index, tokenId)
	for j := i; j < len(s.views); j++ {
		s.index[s.views[j].TokenId] = j
	}
}

func (s *Store) Len() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.views)
}

// Get returns a copy of the view for tokenId.
func (s *Store) Get(tokenId string) (*NFTView, bool) {
	s.lk.Lock()
	defer s.lk.Unlock()
	i, ok := s.index[tokenId]
	if !ok {
		return nil, false
	}
	c := *s.views[i]
	return &c, true
}

// Snapshot returns a copy of the whole set in current order.
func (s *Store) Snapshot() []*NFTView {
	s.lk.Lock()
	defer s.lk.Unlock()
	res := make([]*NFTView, len(s.views))
	for i, v := range s.views {
		c := *v
		res[i] = &c
	}
	return res
}

// Page returns the n-th page (1-based, 25 per page) and remembers it as the
// currently displayed page.
func (s *Store) Page(n int) []*NFTView {
	s.lk.Lock()
	defer s.lk.Unlock()
	if n < 1 {
		n = 1
	}
	s.page = n
	start := (n - 1) * perPage
	if start >= len(s.views) {
		return nil
	}
	end := start + perPage
	if end > len(s.views) {
		end = len(s.views)
	}
	res := make([]*NFTView, 0, end-start)
	for _, v := range s.views[start:end] {
		c := *v
		res = append(res, &c)
	}
	return res
}

func (s *Store) CurrentPage() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.page
}

// ResetPage moves the displayed page back to 1, used on scope switches.
func (s *Store) ResetPage() {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.page = 1
}

// SortByPrice reorders the set by listing price. Unlisted entries sort last.
func (s *Store) SortByPrice(asc bool) {
	s.lk.Lock()
	defer s.lk.Unlock()
	sort.SliceStable(s.views, func(i, j int) bool {
		a, aok := priceOf(s.views[i])
		b, bok := priceOf(s.views[j])
		if aok != bok {
			return aok
		}
		if !aok {
			return false
		}
		if asc {
			return a.LessThan(b)
		}
		return b.LessThan(a)
	})
	for i, v := range s.views {
		s.index[v.TokenId] = i
	}
}

func priceOf(v *NFTView) (decimal.Decimal, bool) {
	if !v.IsListedForSale || v.Price == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(v.Price)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// SetOwner records a confirmed ownership change and rederives isOwner
// against the connected account. An ownership change always clears the
// listing and the offer slot.
func (s *Store) SetOwner(tokenId, owner, account string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	i, ok := s.index[tokenId]
	if !ok {
		return
	}
	v := s.views[i]
	v.Owner = owner
	v.IsListedForSale = false
	v.Price = ""
	v.Offer = nil
	v.Derive(account)
}

func (s *Store) SetListing(tokenId string, listed bool, price string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if i, ok := s.index[tokenId]; ok {
		s.views[i].IsListedForSale = listed
		if !listed {
			price = ""
		}
		s.views[i].Price = price
	}
}

func (s *Store) ClearListing(tokenId string) {
	s.SetListing(tokenId, false, "")
}

func (s *Store) SetOffer(tokenId string, offer *mktintf.Offer) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if i, ok := s.index[tokenId]; ok {
		if offer.Empty() {
			s.views[i].Offer = nil
		} else {
			s.views[i].Offer = offer
		}
	}
}

// MarkSold remembers a token as recently sold, newest first.
func (s *Store) MarkSold(tokenId string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	for _, id := range s.sold {
		if id == tokenId {
			return
		}
	}
	s.sold = append([]string{tokenId}, s.sold...)
	if len(s.sold) > 100 {
		s.sold = s.sold[:100]
	}
}

func (s *Store) RecentlySold() []string {
	s.lk.Lock()
	defer s.lk.Unlock()
	res := make([]string, len(s.sold))
	copy(res, s.sold)
	return res
}
