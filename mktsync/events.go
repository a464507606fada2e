package mktsync

import (
	"context"

	"github.com/KarpelesLab/emitter"
	"github.com/TheQuantumChronicle/libmarket/mktnet"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

// Watch consumes decoded marketplace log events and applies them to the store
// as targeted merges, so other clients' sales and cancellations show up
// without a full pass. account returns the currently connected address, used
// to re-derive per-view flags.
func (e *Engine) Watch(ctx context.Context, hub *emitter.Hub, account func() string) {
	ch := hub.On(mktnet.LogTopic)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			name, _ := emitter.Arg[string](ev, 0)
			tokenId, _ := emitter.Arg[string](ev, 1)
			if tokenId == "" {
				continue
			}
			e.applyLog(ctx, name, tokenId, account())
		}
	}
}

func (e *Engine) applyLog(ctx context.Context, name, tokenId, account string) {
	switch name {
	case "NFTSaleCancelled":
		e.store.ClearListing(tokenId)
	case "NFTSold":
		e.store.MarkSold(tokenId)
		// the token changed hands, pick up its new owner
		owner, err := e.reader.OwnerOf(ctx, tokenId)
		if err == nil {
			e.store.SetOwner(tokenId, owner, account)
		} else {
			e.store.ClearListing(tokenId)
		}
	case "NFTListed":
		listed, err := e.reader.IsListed(ctx, tokenId)
		if err != nil || !listed {
			return
		}
		price, err := e.reader.SalePrice(ctx, tokenId)
		if err != nil {
			return
		}
		e.store.SetListing(tokenId, true, mktutil.FormatEther(price))
	}
}
