package mkttx

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/ModChain/outscript"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktnet"
	"github.com/TheQuantumChronicle/libmarket/mktstore"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

// State tracks where the coordinator currently is in a write's lifecycle.
type State string

const (
	StateIdle                State = "idle"
	StateSubmitting          State = "submitting"
	StatePendingConfirmation State = "pending_confirmation"
	StateConfirmed           State = "confirmed"
	StateReverted            State = "reverted"
	StateRejected            State = "rejected"
)

// Coordinator serializes marketplace writes: one transaction at a time, each
// validated locally before anything is sent, then tracked to its receipt.
type Coordinator struct {
	env    mktintf.Env
	reader mktintf.ContractReader
	sub    mktintf.Submitter
	market *mktnet.Market
	store  *mktstore.Store

	lk    sync.Mutex
	state State
}

func NewCoordinator(e mktintf.Env, reader mktintf.ContractReader, sub mktintf.Submitter, market *mktnet.Market, store *mktstore.Store) *Coordinator {
	return &Coordinator{
		env:    e,
		reader: reader,
		sub:    sub,
		market: market,
		store:  store,
		state:  StateIdle,
	}
}

// State returns the outcome of the most recent write, or the phase of the one
// in flight.
func (c *Coordinator) State() State {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.lk.Lock()
	c.state = s
	c.lk.Unlock()
	go mktutil.BroadcastMsg("tx_state", map[string]any{"state": string(s)})
}

// begin moves the coordinator into StateSubmitting, refusing if a write is
// already in flight.
func (c *Coordinator) begin() error {
	c.lk.Lock()
	if c.state == StateSubmitting || c.state == StatePendingConfirmation {
		c.lk.Unlock()
		return mktintf.Validationf("a transaction is already in progress")
	}
	c.state = StateSubmitting
	c.lk.Unlock()
	go mktutil.BroadcastMsg("tx_state", map[string]any{"state": string(StateSubmitting)})
	return nil
}

func (c *Coordinator) precheck(sess mktintf.Session) error {
	if sess.Account == "" {
		return mktintf.ErrNoAccount
	}
	if sess.ChainId != mktnet.MagmaChainId {
		return mktintf.ErrNetworkMismatch
	}
	return nil
}

// submitAndWait pushes a call through the submitter and blocks until the
// receipt lands. A successful receipt is the only non-error outcome.
func (c *Coordinator) submitAndWait(ctx context.Context, sess mktintf.Session, call mktintf.ContractCall) (*mktintf.Receipt, error) {
	pending, err := c.sub.Submit(ctx, sess, call)
	if err != nil {
		return nil, err
	}
	c.setState(StatePendingConfirmation)
	rec, err := pending.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if !rec.Success() {
		return rec, mktintf.ErrReverted
	}
	return rec, nil
}

// conclude maps the action's error (or lack of one) to a terminal state and
// the matching user toast.
func (c *Coordinator) conclude(err error, okMsg, toastId string) {
	switch {
	case err == nil:
		c.setState(StateConfirmed)
		if okMsg != "" {
			go mktutil.NotifySuccess(okMsg, toastId)
		}
	case errors.Is(err, mktintf.ErrUserDeclined):
		c.setState(StateRejected)
		go mktutil.NotifyError("Transaction rejected.", toastId)
	case errors.Is(err, mktintf.ErrReverted):
		c.setState(StateReverted)
		go mktutil.NotifyError("Transaction failed on chain.", toastId)
	default:
		var verr *mktintf.ValidationError
		if errors.As(err, &verr) {
			c.setState(StateRejected)
			go mktutil.NotifyError(verr.Reason, toastId)
		} else {
			c.setState(StateIdle)
			go mktutil.NotifyError("Transaction could not be sent.", toastId)
		}
	}
}

// ensureApproval grants the marketplace contract operator rights on the NFT
// contract when it does not have them yet. List, accept and transfer all need
// this before their own call can succeed.
func (c *Coordinator) ensureApproval(ctx context.Context, sess mktintf.Session) error {
	approved, err := c.reader.IsApprovedForAll(ctx, sess.Account, c.market.MarketContract)
	if err != nil {
		return err
	}
	if approved {
		return nil
	}
	call, err := c.market.SetApprovalForAllCall(c.market.MarketContract, true)
	if err != nil {
		return err
	}
	_, err = c.submitAndWait(ctx, sess, call)
	return err
}

// refreshToken re-reads the listing and offer state of a single token right
// after a confirmed write, so the view catches anything a competing client
// changed in the meantime.
func (c *Coordinator) refreshToken(ctx context.Context, sess mktintf.Session, tokenId string) {
	listed, err := c.reader.IsListed(ctx, tokenId)
	if err != nil {
		return
	}
	if listed {
		price, err := c.reader.SalePrice(ctx, tokenId)
		if err != nil {
			return
		}
		c.store.SetListing(tokenId, true, mktutil.FormatEther(price))
	} else {
		c.store.ClearListing(tokenId)
	}
	if offer, err := c.reader.HighestOffer(ctx, tokenId); err == nil {
		c.store.SetOffer(tokenId, offer)
	}
}

// Mint purchases count freshly minted NFTs at the fixed mint price.
func (c *Coordinator) Mint(ctx context.Context, sess mktintf.Session, count uint64) error {
	if err := c.precheck(sess); err != nil {
		return err
	}
	if count == 0 || count > 10 {
		return mktintf.Validationf("mint count must be between 1 and 10")
	}
	if err := c.begin(); err != nil {
		return err
	}
	err := c.mint(ctx, sess, count)
	c.conclude(err, "NFT minted!", "mint")
	return err
}

func (c *Coordinator) mint(ctx context.Context, sess mktintf.Session, count uint64) error {
	call, err := c.market.MintCall(count)
	if err != nil {
		return err
	}
	_, err = c.submitAndWait(ctx, sess, call)
	return err
}

// List puts a token the caller owns up for sale at the given price in LAVA.
func (c *Coordinator) List(ctx context.Context, sess mktintf.Session, tokenId, price string) error {
	if err := c.precheck(sess); err != nil {
		return err
	}
	priceWei, err := mktutil.ParseEther(price)
	if err != nil {
		return mktintf.Validationf("invalid price: %s", err)
	}
	if v, ok := c.store.Get(tokenId); ok && !v.IsOwner {
		return mktintf.Validationf("you do not own this NFT")
	}
	if err := c.begin(); err != nil {
		return err
	}
	err = c.list(ctx, sess, tokenId, priceWei)
	c.conclude(err, "NFT listed for sale!", "list:"+tokenId)
	return err
}

func (c *Coordinator) list(ctx context.Context, sess mktintf.Session, tokenId string, priceWei *big.Int) error {
	listed, err := c.reader.IsListed(ctx, tokenId)
	if err != nil {
		return err
	}
	if listed {
		return mktintf.Validationf("this NFT is already listed for sale")
	}
	if err := c.ensureApproval(ctx, sess); err != nil {
		return err
	}
	call, err := c.market.ListCall(tokenId, priceWei)
	if err != nil {
		return err
	}
	if _, err := c.submitAndWait(ctx, sess, call); err != nil {
		return err
	}
	c.store.SetListing(tokenId, true, mktutil.FormatEther(priceWei))
	c.refreshToken(ctx, sess, tokenId)
	return nil
}

// CancelSale takes a token the caller listed off the market.
func (c *Coordinator) CancelSale(ctx context.Context, sess mktintf.Session, tokenId string) error {
	if err := c.precheck(sess); err != nil {
		return err
	}
	if v, ok := c.store.Get(tokenId); ok && !v.IsOwner {
		return mktintf.Validationf("you do not own this NFT")
	}
	if err := c.begin(); err != nil {
		return err
	}
	err := c.cancelSale(ctx, sess, tokenId)
	c.conclude(err, "Sale cancelled.", "cancelSale:"+tokenId)
	return err
}

func (c *Coordinator) cancelSale(ctx context.Context, sess mktintf.Session, tokenId string) error {
	call, err := c.market.CancelSaleCall(tokenId)
	if err != nil {
		return err
	}
	if _, err := c.submitAndWait(ctx, sess, call); err != nil {
		return err
	}
	c.store.ClearListing(tokenId)
	c.refreshToken(ctx, sess, tokenId)
	return nil
}

// MakeOffer escrows amount LAVA as a bid on someone else's token. The offer
// must beat the current highest one, which we check before sending anything.
func (c *Coordinator) MakeOffer(ctx context.Context, sess mktintf.Session, tokenId, amount string) error {
	if err := c.precheck(sess); err != nil {
		return err
	}
	amountWei, err := mktutil.ParseEther(amount)
	if err != nil {
		return mktintf.Validationf("invalid offer amount: %s", err)
	}
	if v, ok := c.store.Get(tokenId); ok {
		if v.IsOwner {
			return mktintf.Validationf("you cannot make an offer on your own NFT")
		}
		if v.Offer != nil && amountWei.Cmp(v.Offer.Amount) <= 0 {
			return mktintf.Validationf("offer must be higher than the current highest offer")
		}
	}
	if err := c.begin(); err != nil {
		return err
	}
	err = c.makeOffer(ctx, sess, tokenId, amountWei)
	c.conclude(err, "Offer submitted!", "offer:"+tokenId)
	return err
}

func (c *Coordinator) makeOffer(ctx context.Context, sess mktintf.Session, tokenId string, amountWei *big.Int) error {
	cur, err := c.reader.HighestOffer(ctx, tokenId)
	if err != nil {
		return err
	}
	if !cur.Empty() && amountWei.Cmp(cur.Amount) <= 0 {
		return mktintf.Validationf("offer must be higher than the current highest offer")
	}
	call, err := c.market.MakeOfferCall(tokenId, amountWei)
	if err != nil {
		return err
	}
	if _, err := c.submitAndWait(ctx, sess, call); err != nil {
		return err
	}
	c.store.SetOffer(tokenId, &mktintf.Offer{Amount: amountWei, Bidder: sess.Account})
	c.refreshToken(ctx, sess, tokenId)
	return nil
}

// AcceptOffer sells the caller's token to the highest bidder.
func (c *Coordinator) AcceptOffer(ctx context.Context, sess mktintf.Session, tokenId string) error {
	if err := c.precheck(sess); err != nil {
		return err
	}
	if v, ok := c.store.Get(tokenId); ok && !v.IsOwner {
		return mktintf.Validationf("you do not own this NFT")
	}
	if err := c.begin(); err != nil {
		return err
	}
	err := c.acceptOffer(ctx, sess, tokenId)
	c.conclude(err, "Offer accepted!", "accept:"+tokenId)
	return err
}

func (c *Coordinator) acceptOffer(ctx context.Context, sess mktintf.Session, tokenId string) error {
	offer, err := c.reader.HighestOffer(ctx, tokenId)
	if err != nil {
		return err
	}
	if offer.Empty() {
		return mktintf.Validationf("there is no offer to accept on this NFT")
	}
	if err := c.ensureApproval(ctx, sess); err != nil {
		return err
	}
	call, err := c.market.AcceptOfferCall(tokenId)
	if err != nil {
		return err
	}
	if _, err := c.submitAndWait(ctx, sess, call); err != nil {
		return err
	}
	c.store.SetOwner(tokenId, offer.Bidder, sess.Account)
	c.store.MarkSold(tokenId)
	c.refreshToken(ctx, sess, tokenId)
	return nil
}

// CancelOffer withdraws the caller's escrowed offer.
func (c *Coordinator) CancelOffer(ctx context.Context, sess mktintf.Session, tokenId string, offerId uint64) error {
	if err := c.precheck(sess); err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	err := c.cancelOffer(ctx, sess, tokenId, offerId)
	c.conclude(err, "Offer cancelled.", "cancelOffer:"+tokenId)
	return err
}

func (c *Coordinator) cancelOffer(ctx context.Context, sess mktintf.Session, tokenId string, offerId uint64) error {
	call, err := c.market.CancelOfferCall(tokenId, offerId)
	if err != nil {
		return err
	}
	if _, err := c.submitAndWait(ctx, sess, call); err != nil {
		return err
	}
	c.store.SetOffer(tokenId, nil)
	c.refreshToken(ctx, sess, tokenId)
	return nil
}

// Buy purchases a listed token at its asking price. The listing and price are
// re-read right before submission in case the seller changed or cancelled it.
func (c *Coordinator) Buy(ctx context.Context, sess mktintf.Session, tokenId string) error {
	if err := c.precheck(sess); err != nil {
		return err
	}
	if v, ok := c.store.Get(tokenId); ok && v.IsOwner {
		return mktintf.Validationf("you already own this NFT")
	}
	if err := c.begin(); err != nil {
		return err
	}
	err := c.buy(ctx, sess, tokenId)
	c.conclude(err, "NFT purchased!", "buy:"+tokenId)
	return err
}

func (c *Coordinator) buy(ctx context.Context, sess mktintf.Session, tokenId string) error {
	listed, err := c.reader.IsListed(ctx, tokenId)
	if err != nil {
		return err
	}
	if !listed {
		return mktintf.Validationf("this NFT is no longer for sale")
	}
	price, err := c.reader.SalePrice(ctx, tokenId)
	if err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return mktintf.Validationf("this NFT is no longer for sale")
	}
	call, err := c.market.BuyCall(tokenId, price)
	if err != nil {
		return err
	}
	if _, err := c.submitAndWait(ctx, sess, call); err != nil {
		return err
	}
	c.store.SetOwner(tokenId, sess.Account, sess.Account)
	c.store.MarkSold(tokenId)
	c.refreshToken(ctx, sess, tokenId)
	return nil
}

// Transfer sends a token the caller owns to another address, outside of any
// sale.
func (c *Coordinator) Transfer(ctx context.Context, sess mktintf.Session, tokenId, to string) error {
	if err := c.precheck(sess); err != nil {
		return err
	}
	if err := checkRecipient(to, sess.Account); err != nil {
		return err
	}
	if v, ok := c.store.Get(tokenId); ok && !v.IsOwner {
		return mktintf.Validationf("you do not own this NFT")
	}
	if err := c.begin(); err != nil {
		return err
	}
	err := c.transfer(ctx, sess, tokenId, to)
	c.conclude(err, "NFT transferred!", "transfer:"+tokenId)
	return err
}

func (c *Coordinator) transfer(ctx context.Context, sess mktintf.Session, tokenId, to string) error {
	if err := c.ensureApproval(ctx, sess); err != nil {
		return err
	}
	call, err := c.market.TransferCall(sess.Account, to, tokenId)
	if err != nil {
		return err
	}
	if _, err := c.submitAndWait(ctx, sess, call); err != nil {
		return err
	}
	c.store.SetOwner(tokenId, to, sess.Account)
	c.refreshToken(ctx, sess, tokenId)
	return nil
}

func checkRecipient(to, self string) error {
	if _, err := outscript.ParseEvmAddress(to); err != nil {
		return mktintf.Validationf("invalid recipient address")
	}
	if to == mktintf.ZeroAddress {
		return mktintf.Validationf("cannot transfer to the zero address")
	}
	if strings.EqualFold(to, self) {
		return mktintf.Validationf("cannot transfer to yourself")
	}
	return nil
}
