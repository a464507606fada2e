package mktbase

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/KarpelesLab/apirouter"
	"github.com/KarpelesLab/pobj"
	"github.com/KarpelesLab/xuid"
	"github.com/TheQuantumChronicle/libmarket/mktacct"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktnet"
	"github.com/TheQuantumChronicle/libmarket/mkttx"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

func init() {
	pobj.RegisterActions[request]("Request",
		&pobj.ObjectActions{
			Fetch: pobj.Static(apiFetchRequest),
			List:  pobj.Static(apiListRequest),
		},
	)

	pobj.RegisterStatic("Request:approve", requestDoApprove)
	pobj.RegisterStatic("Request:reject", requestDoReject)
}

var (
	pendingReqs   = make(map[string]chan string)
	pendingReqsLk sync.Mutex
)

// request is a transaction waiting for the user's explicit go-ahead. Nothing
// is signed or sent until the UI calls Request:approve.
type request struct {
	Id          *xuid.XUID         `gorm:"primaryKey"`
	Type        string             // sign
	Status      string             // pending | accepted | rejected
	Account     *string            // address the transaction will be sent from
	Transaction *mkttx.Transaction `json:",omitempty" gorm:"serializer:json"`
	Created     time.Time          `gorm:"autoCreateTime"`
	Updated     time.Time          `gorm:"autoUpdateTime"`
}

func (r *request) save(e *env) error {
	if r.Id == nil {
		// compute id
		r.Id = xuid.Must(xuid.NewRandom("req"))
	}
	return e.Save(r)
}

func makePendingRequestChan(id string) chan string {
	ch := make(chan string)
	pendingReqsLk.Lock()
	defer pendingReqsLk.Unlock()

	if c, ok := pendingReqs[id]; ok {
		close(c)
	}
	pendingReqs[id] = ch
	return ch
}

func takePendingRequestChan(id string) chan string {
	pendingReqsLk.Lock()
	defer pendingReqsLk.Unlock()
	if c, ok := pendingReqs[id]; ok {
		delete(pendingReqs, id)
		return c
	}
	return nil
}

// run blocks until the user approves or rejects the request.
func (r *request) run(e *env) error {
	r.Status = "pending"
	err := r.save(e)
	if err != nil {
		return fmt.Errorf("failed initial request save: %w", err)
	}

	ch := makePendingRequestChan(r.Id.String())
	// send event
	go mktutil.BroadcastMsg("request", map[string]any{"request_id": r.Id.String()})

	result, ok := <-ch
	if !ok {
		r.Status = "rejected"
		r.save(e)
		return mktintf.ErrUserDeclined
	}
	// reload req
	e.sql.First(r) // will cause a re-fetch of the request
	r.Status = result
	if r.Status == "rejected" {
		return mktintf.ErrUserDeclined
	}
	return nil
}

func (r *request) respond(e *env, resp string) error {
	r.Status = resp
	err := r.save(e)
	if err != nil {
		return err
	}

	ch := takePendingRequestChan(r.Id.String())
	if ch != nil {
		to := time.NewTimer(2 * time.Second)
		defer to.Stop()
		select {
		case ch <- resp:
			return nil
		case <-to.C:
			return errors.New("timed out while sending response")
		}
	}
	return nil
}

// Submit implements the write path: build the transaction, ask the user,
// sign, send, and hand back a receipt-polling handle.
func (e *env) Submit(ctx context.Context, sess mktintf.Session, call mktintf.ContractCall) (mktintf.PendingTx, error) {
	acct, err := mktacct.CurrentAccount(e)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(acct.Address, sess.Account) {
		return nil, mktintf.ErrNoAccount
	}
	n, err := mktnet.CurrentNetwork(e)
	if err != nil {
		return nil, err
	}

	tx := mkttx.FromCall("market", acct.Address, call)
	if err := tx.Validate(ctx, n); err != nil {
		return nil, err
	}

	req := &request{Type: "sign", Account: &acct.Address, Transaction: tx}
	if err := req.run(e); err != nil {
		return nil, err
	}
	if req.Transaction == nil || req.Transaction.Hash == "" {
		return nil, errors.New("approved transaction has no hash")
	}
	return mkttx.NewPending(n, req.Transaction.Hash), nil
}

func apiFetchRequest(ctx *apirouter.Context, in struct{ Id string }) (any, error) {
	e := apirouter.GetObject[env](ctx, "@env")
	if e == nil {
		return nil, errors.New("failed to get env")
	}

	id, err := xuid.ParsePrefix(in.Id, "req")
	if err != nil {
		return nil, err
	}

	return byPrimaryKey[request](e, id)
}

func apiListRequest(ctx *apirouter.Context) (any, error) {
	e := apirouter.GetObject[env](ctx, "@env")
	if e == nil {
		return nil, errors.New("failed to get env")
	}

	var res []*request

	tx := e.sql
	tx = tx.Scopes(ctx.Paginate(50))
	tx = tx.Order("Created ASC")

	tx = tx.Find(&res)
	return res, tx.Error
}

func requestDoApprove(ctx *apirouter.Context) (any, error) {
	e := apirouter.GetObject[env](ctx, "@env")
	if e == nil {
		return nil, errors.New("failed to get env")
	}

	req := apirouter.GetObject[request](ctx, "Request")
	if req == nil {
		return nil, errors.New("request is required")
	}

	switch req.Type {
	case "sign":
		if req.Transaction == nil {
			return nil, errors.New("sign request has no transaction")
		}
		acct, err := mktacct.CurrentAccount(e)
		if err != nil {
			return nil, err
		}
		n, err := mktnet.CurrentNetwork(e)
		if err != nil {
			return nil, err
		}
		if err := req.Transaction.SignAndSend(ctx, e, n, acct, crypto.Hash(0)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported request type %s", req.Type)
	}

	return req, req.respond(e, "accepted")
}

func requestDoReject(ctx *apirouter.Context) (any, error) {
	e := apirouter.GetObject[env](ctx, "@env")
	if e == nil {
		return nil, errors.New("failed to get env")
	}

	req := apirouter.GetObject[request](ctx, "Request")
	if req == nil {
		return nil, errors.New("request is required")
	}

	return req, req.respond(e, "rejected")
}
