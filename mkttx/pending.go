package mkttx

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktnet"
)

// receipt polling interval. Magma blocks are fast but there is no point
// hammering the RPC endpoint.
const receiptPollInterval = 3 * time.Second

type pendingTx struct {
	net  *mktnet.Network
	hash string
}

// NewPending returns a handle that can wait for the given transaction hash
// to be mined.
func NewPending(n *mktnet.Network, hash string) mktintf.PendingTx {
	return &pendingTx{net: n, hash: hash}
}

func (p *pendingTx) Hash() string {
	return p.hash
}

// Wait polls eth_getTransactionReceipt until the transaction is mined or the
// context expires.
func (p *pendingTx) Wait(ctx context.Context) (*mktintf.Receipt, error) {
	t := time.NewTicker(receiptPollInterval)
	defer t.Stop()

	for {
		res, err := p.fetchReceipt(ctx)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (p *pendingTx) fetchReceipt(ctx context.Context) (*mktintf.Receipt, error) {
	raw, err := p.net.DoRPC(ctx, "eth_getTransactionReceipt", p.hash)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "eth_getTransactionReceipt", Err: err}
	}
	if len(raw) == 0 || string(raw) == "null" {
		// not mined yet
		return nil, nil
	}

	var rec struct {
		TransactionHash string `json:"transactionHash"`
		Status          string `json:"status"`
		BlockNumber     string `json:"blockNumber"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}

	res := &mktintf.Receipt{TxHash: rec.TransactionHash}
	if res.TxHash == "" {
		res.TxHash = p.hash
	}
	res.Status = parseHexUint(rec.Status)
	res.BlockNumber = parseHexUint(rec.BlockNumber)
	return res, nil
}

func parseHexUint(s string) uint64 {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0
	}
	return v
}
