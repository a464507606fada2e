package mktbase

import (
	"errors"
	"io/fs"

	"github.com/KarpelesLab/apirouter"
	"github.com/KarpelesLab/pobj"
	"github.com/KarpelesLab/typutil"
	"github.com/TheQuantumChronicle/libmarket/mktacct"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktnet"
	"github.com/TheQuantumChronicle/libmarket/mktquote"
	"github.com/TheQuantumChronicle/libmarket/mktstore"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

func init() {
	pobj.RegisterActions[mktstore.NFTView]("Nft",
		&pobj.ObjectActions{
			Fetch: typutil.Func(apiFetchNft),
			List:  typutil.Func(apiListNft),
		},
	)

	pobj.RegisterStatic("Market:loadAll", apiLoadAll)
	pobj.RegisterStatic("Market:loadForSale", apiLoadForSale)
	pobj.RegisterStatic("Market:loadOwned", apiLoadOwned)
	pobj.RegisterStatic("Market:recentlySold", apiRecentlySold)
	pobj.RegisterStatic("Market:page", apiPage)
	pobj.RegisterStatic("Market:sortByPrice", apiSortByPrice)
	pobj.RegisterStatic("Market:state", apiTxState)
	pobj.RegisterStatic("Market:quote", apiQuote)

	pobj.RegisterStatic("Market:mint", apiMint)
	pobj.RegisterStatic("Market:list", apiList)
	pobj.RegisterStatic("Market:cancelSale", apiCancelSale)
	pobj.RegisterStatic("Market:makeOffer", apiMakeOffer)
	pobj.RegisterStatic("Market:acceptOffer", apiAcceptOffer)
	pobj.RegisterStatic("Market:cancelOffer", apiCancelOffer)
	pobj.RegisterStatic("Market:buy", apiBuy)
	pobj.RegisterStatic("Market:transfer", apiTransfer)
}

func getEnv(ctx *apirouter.Context) (*env, error) {
	e := apirouter.GetObject[env](ctx, "@env")
	if e == nil {
		return nil, errors.New("failed to get env")
	}
	return e, nil
}

// session builds the caller's session from the connected account and active
// network. An empty account or foreign chain gets caught downstream.
func (e *env) session() mktintf.Session {
	var sess mktintf.Session
	if acct, err := mktacct.CurrentAccount(e); err == nil {
		sess.Account = acct.Address
	}
	if n, err := mktnet.CurrentNetwork(e); err == nil {
		sess.ChainId = n.ChainId
	}
	return sess
}

func apiFetchNft(ctx *apirouter.Context, in struct{ Id string }) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := e.store.Get(in.Id); ok {
		return v, nil
	}
	return nil, fs.ErrNotExist
}

func apiListNft(ctx *apirouter.Context) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"nfts":  e.store.Page(e.store.CurrentPage()),
		"page":  e.store.CurrentPage(),
		"total": e.store.Len(),
	}, nil
}

func apiLoadAll(ctx *apirouter.Context) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.engine.LoadAll(ctx, e.session()); err != nil {
		return nil, err
	}
	return e.store.Snapshot(), nil
}

func apiLoadForSale(ctx *apirouter.Context) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.engine.LoadForSale(ctx, e.session()); err != nil {
		return nil, err
	}
	return e.store.Snapshot(), nil
}

func apiLoadOwned(ctx *apirouter.Context) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.engine.LoadOwned(ctx, e.session()); err != nil {
		return nil, err
	}
	return e.store.Snapshot(), nil
}

func apiRecentlySold(ctx *apirouter.Context) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return e.engine.RecentlySold(ctx, e.session())
}

func apiPage(ctx *apirouter.Context, in struct{ Page int }) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"nfts":  e.store.Page(in.Page),
		"page":  e.store.CurrentPage(),
		"total": e.store.Len(),
	}, nil
}

func apiSortByPrice(ctx *apirouter.Context, in struct{ Ascending bool }) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	e.store.SortByPrice(in.Ascending)
	return e.store.Page(1), nil
}

func apiTxState(ctx *apirouter.Context) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"state": string(e.coord.State())}, nil
}

// apiQuote returns the fiat value of a token's asking price.
func apiQuote(ctx *apirouter.Context, in struct {
	TokenId  string
	Currency string
}) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := e.store.Get(in.TokenId)
	if !ok || !v.IsListedForSale {
		return nil, fs.ErrNotExist
	}
	wei, err := mktutil.ParseEther(v.Price)
	if err != nil {
		return nil, err
	}
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}
	n, err := mktnet.CurrentNetwork(e)
	if err != nil {
		return nil, err
	}
	amt, err := mktquote.FiatValue(e, n.CurrencySymbol, currency, wei)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"token_id": in.TokenId,
		"price":    v.Price,
		"currency": currency,
		"value":    amt,
	}, nil
}

func apiMint(ctx *apirouter.Context, in struct{ Count uint64 }) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	count := in.Count
	if count == 0 {
		count = 1
	}
	return nil, e.coord.Mint(ctx, e.session(), count)
}

func apiList(ctx *apirouter.Context, in struct {
	TokenId string
	Price   string
}) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return nil, e.coord.List(ctx, e.session(), in.TokenId, in.Price)
}

func apiCancelSale(ctx *apirouter.Context, in struct{ TokenId string }) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return nil, e.coord.CancelSale(ctx, e.session(), in.TokenId)
}

func apiMakeOffer(ctx *apirouter.Context, in struct {
	TokenId string
	Amount  string
}) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return nil, e.coord.MakeOffer(ctx, e.session(), in.TokenId, in.Amount)
}

func apiAcceptOffer(ctx *apirouter.Context, in struct{ TokenId string }) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return nil, e.coord.AcceptOffer(ctx, e.session(), in.TokenId)
}

func apiCancelOffer(ctx *apirouter.Context, in struct {
	TokenId string
	OfferId uint64
}) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return nil, e.coord.CancelOffer(ctx, e.session(), in.TokenId, in.OfferId)
}

func apiBuy(ctx *apirouter.Context, in struct{ TokenId string }) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return nil, e.coord.Buy(ctx, e.session(), in.TokenId)
}

func apiTransfer(ctx *apirouter.Context, in struct {
	TokenId string
	To      string
}) (any, error) {
	e, err := getEnv(ctx)
	if err != nil {
		return nil, err
	}
	return nil, e.coord.Transfer(ctx, e.session(), in.TokenId, in.To)
}
