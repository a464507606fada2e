package mktintf

import (
	"context"
	"math/big"
)

// Session is the connected-wallet context passed into every core operation.
// It is a snapshot: the connection watcher builds a fresh one whenever the
// account or chain changes, callers never read ambient globals.
type Session struct {
	Account string // connected wallet address, empty if none
	ChainId string // decimal chain id as reported by the provider
}

// Listing is one entry of the marketplace's for-sale enumeration.
type Listing struct {
	TokenId string
	Price   *big.Int // wei
	Seller  string
}

// Offer is the single highest standing bid on a token. The zero value means
// no offer: the slot only counts when Amount > 0 and Bidder is a real
// address.
type Offer struct {
	Amount *big.Int // wei
	Bidder string
}

func (o *Offer) Empty() bool {
	return o == nil || o.Amount == nil || o.Amount.Sign() <= 0 || o.Bidder == "" || o.Bidder == ZeroAddress
}

const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ContractReader is the read half of the ledger gateway: the view the
// synchronization engine and coordinator have of the two contracts.
type ContractReader interface {
	TotalSupply(ctx context.Context) (uint64, error)
	OwnerOf(ctx context.Context, tokenId string) (string, error)
	TokenIdsOwnedBy(ctx context.Context, addr string) ([]string, error)
	IsListed(ctx context.Context, tokenId string) (bool, error)
	SalePrice(ctx context.Context, tokenId string) (*big.Int, error)
	HighestOffer(ctx context.Context, tokenId string) (*Offer, error)
	AllForSale(ctx context.Context) ([]Listing, error)
	IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error)
}

// ContractCall is one prepared state-mutating call against a contract.
type ContractCall struct {
	To    string   // contract address
	Data  string   // 0x-prefixed calldata
	Value *big.Int // wei attached to the call, nil for none
}

// Receipt is what awaiting a pending transaction resolves to.
type Receipt struct {
	TxHash      string
	Status      uint64 // 1 = success, anything else = reverted
	BlockNumber uint64
}

func (r *Receipt) Success() bool {
	return r != nil && r.Status == 1
}

// PendingTx is the handle returned by every ledger write.
type PendingTx interface {
	Hash() string
	// Wait blocks until the transaction outcome is known or ctx ends.
	Wait(ctx context.Context) (*Receipt, error)
}

// Submitter is the write half of the gateway. Submit drives user approval
// and signing; it returns ErrUserDeclined if the wallet rejects the request.
type Submitter interface {
	Submit(ctx context.Context, sess Session, call ContractCall) (PendingTx, error)
}
