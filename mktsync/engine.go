package mktsync

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktnet"
	"github.com/TheQuantumChronicle/libmarket/mktnft"
	"github.com/TheQuantumChronicle/libmarket/mktstore"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// how many tokens we hydrate concurrently during a pass
const fetchConcurrency = 8

// Engine drives the read path: each Load* call is one synchronization pass
// that resolves a scope against the ledger, hydrates metadata and ownership
// for every token in it, and atomically replaces the store's contents.
//
// Starting a new pass cancels the one in flight. Only the most recent pass is
// allowed to commit, so a slow older pass can never clobber newer data.
type Engine struct {
	env    mktintf.Env
	reader mktintf.ContractReader
	cache  *mktnft.Cache
	store  *mktstore.Store

	lk     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func New(e mktintf.Env, reader mktintf.ContractReader, cache *mktnft.Cache, store *mktstore.Store) *Engine {
	return &Engine{env: e, reader: reader, cache: cache, store: store}
}

// beginPass supersedes any pass in flight and returns the context and
// generation for the new one.
func (e *Engine) beginPass(ctx context.Context) (context.Context, uint64) {
	e.lk.Lock()
	defer e.lk.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.gen += 1
	return ctx, e.gen
}

// commit installs the pass result unless a newer pass has started since.
func (e *Engine) commit(gen uint64, views []*mktstore.NFTView) bool {
	e.lk.Lock()
	defer e.lk.Unlock()
	if gen != e.gen {
		return false
	}
	e.store.Install(views)
	e.store.ResetPage()
	return true
}

// clearLoading drops the loading flag on whatever this pass installed, unless
// a newer pass owns the store by now.
func (e *Engine) clearLoading(gen uint64) {
	e.lk.Lock()
	defer e.lk.Unlock()
	if gen != e.gen {
		return
	}
	e.store.ClearLoading()
}

func (e *Engine) precheck(sess mktintf.Session) error {
	if sess.Account == "" {
		return mktintf.ErrNoAccount
	}
	if sess.ChainId != mktnet.MagmaChainId {
		return mktintf.ErrNetworkMismatch
	}
	return nil
}

// seed is one token a pass wants hydrated, plus whatever the scope resolution
// already told us about it.
type seed struct {
	tokenId string
	owner   string // empty means we still have to ask the ledger
	listing *mktintf.Listing
}

// hydrate turns a seed into a view. A metadata or owner fetch failure
// filters the token out (nil view, nil error) rather than failing the pass,
// matching how a missing or broken token should just not show up. Listing
// and offer reads failing means the ledger itself is unreachable, which
// aborts the pass.
func (e *Engine) hydrate(ctx context.Context, account string, s seed) (*mktstore.NFTView, error) {
	v := &mktstore.NFTView{TokenId: s.tokenId, Owner: s.owner}

	g, ctx := errgroup.WithContext(ctx)
	// one flag per goroutine, only read back after Wait
	var metaMissing, ownerMissing bool

	g.Go(func() error {
		rec, err := e.cache.Get(ctx, s.tokenId)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			metaMissing = true
			return nil
		}
		v.Metadata = rec
		return nil
	})
	if s.owner == "" {
		g.Go(func() error {
			owner, err := e.reader.OwnerOf(ctx, s.tokenId)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				ownerMissing = true
				return nil
			}
			v.Owner = owner
			return nil
		})
	}
	if s.listing == nil {
		g.Go(func() error {
			listed, err := e.reader.IsListed(ctx, s.tokenId)
			if err != nil {
				return err
			}
			if !listed {
				return nil
			}
			price, err := e.reader.SalePrice(ctx, s.tokenId)
			if err != nil {
				return err
			}
			v.IsListedForSale = true
			v.Price = mktutil.FormatEther(price)
			return nil
		})
	} else {
		v.IsListedForSale = true
		v.Price = mktutil.FormatEther(s.listing.Price)
	}
	g.Go(func() error {
		offer, err := e.reader.HighestOffer(ctx, s.tokenId)
		if err != nil {
			return err
		}
		if !offer.Empty() {
			v.Offer = offer
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if metaMissing || ownerMissing {
		return nil, nil
	}
	v.Derive(account)
	return v, nil
}

// collect hydrates all seeds concurrently, preserving their order and
// dropping the filtered ones.
func (e *Engine) collect(ctx context.Context, account string, seeds []seed) ([]*mktstore.NFTView, error) {
	out := make([]*mktstore.NFTView, len(seeds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, s := range seeds {
		g.Go(func() error {
			v, err := e.hydrate(ctx, account, s)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lo.Compact(out), nil
}

// finishPass commits the pass result. A cancelled pass just goes quiet, it
// was superseded by a newer one. A pass that fails for real must not leave
// skeletons stuck in the loading state.
func (e *Engine) finishPass(ctx context.Context, gen uint64, views []*mktstore.NFTView, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		e.clearLoading(gen)
		return err
	}
	select {
	case <-ctx.Done():
		return nil
	default:
	}
	e.commit(gen, views)
	return nil
}

// LoadAll synchronizes every minted token, in mint order.
func (e *Engine) LoadAll(ctx context.Context, sess mktintf.Session) error {
	if err := e.precheck(sess); err != nil {
		return err
	}
	ctx, gen := e.beginPass(ctx)

	total, err := e.reader.TotalSupply(ctx)
	if err != nil {
		return e.finishPass(ctx, gen, nil, err)
	}
	seeds := make([]seed, 0, total)
	skeletons := make([]*mktstore.NFTView, 0, total)
	for i := uint64(1); i <= total; i++ {
		id := strconv.FormatUint(i, 10)
		seeds = append(seeds, seed{tokenId: id})
		skeletons = append(skeletons, &mktstore.NFTView{TokenId: id, Loading: true})
	}
	// show skeletons right away, hydration fills them in
	e.commit(gen, skeletons)

	views, err := e.collect(ctx, sess.Account, seeds)
	return e.finishPass(ctx, gen, views, err)
}

// LoadForSale synchronizes only the tokens with an active listing. An empty
// market is a normal outcome, not an error.
func (e *Engine) LoadForSale(ctx context.Context, sess mktintf.Session) error {
	if err := e.precheck(sess); err != nil {
		return err
	}
	ctx, gen := e.beginPass(ctx)

	listings, err := e.reader.AllForSale(ctx)
	if err != nil {
		return e.finishPass(ctx, gen, nil, err)
	}
	if len(listings) == 0 {
		if e.commit(gen, nil) {
			go mktutil.NotifyInfo("No NFTs are currently for sale.", "forsale")
		}
		return nil
	}
	seeds := make([]seed, 0, len(listings))
	for _, l := range listings {
		seeds = append(seeds, seed{tokenId: l.TokenId, owner: l.Seller, listing: &l})
	}
	views, err := e.collect(ctx, sess.Account, seeds)
	return e.finishPass(ctx, gen, views, err)
}

// LoadOwned synchronizes the tokens held by the connected account.
func (e *Engine) LoadOwned(ctx context.Context, sess mktintf.Session) error {
	if err := e.precheck(sess); err != nil {
		return err
	}
	ctx, gen := e.beginPass(ctx)

	ids, err := e.reader.TokenIdsOwnedBy(ctx, sess.Account)
	if err != nil {
		return e.finishPass(ctx, gen, nil, err)
	}
	if len(ids) == 0 {
		if e.commit(gen, nil) {
			go mktutil.NotifyInfo("You don't own any NFTs yet.", "owned")
		}
		return nil
	}
	seeds := make([]seed, 0, len(ids))
	for _, id := range ids {
		seeds = append(seeds, seed{tokenId: id, owner: sess.Account})
	}
	views, err := e.collect(ctx, sess.Account, seeds)
	return e.finishPass(ctx, gen, views, err)
}

// RecentlySold returns hydrated views for the tokens sold since the session
// started, newest first. Tokens that dropped out of the store are re-fetched
// individually, best effort.
func (e *Engine) RecentlySold(ctx context.Context, sess mktintf.Session) ([]*mktstore.NFTView, error) {
	if err := e.precheck(sess); err != nil {
		return nil, err
	}
	ids := e.store.RecentlySold()
	out := make([]*mktstore.NFTView, 0, len(ids))
	for _, id := range ids {
		if v, ok := e.store.Get(id); ok {
			out = append(out, v)
			continue
		}
		v, err := e.hydrate(ctx, sess.Account, seed{tokenId: id})
		if err != nil || v == nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
