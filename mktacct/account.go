package mktacct

import (
	"crypto"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/KarpelesLab/xuid"
	"github.com/ModChain/outscript"
	"github.com/ModChain/secp256k1"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

// Account is the connected wallet. The library never holds private keys:
// the embedding wallet registers a crypto.Signer for the account at connect
// time and the coordinator signs through it.
type Account struct {
	Id      *xuid.XUID `gorm:"primaryKey"`
	Name    string     // user-friendly name
	Address string     // 0x address derived from the public key
	URI     string     // ethereum:0x...
	Pubkey  string     // base64 encoded compressed public key
	Created time.Time  `gorm:"autoCreateTime"`
	Updated time.Time  `gorm:"autoUpdateTime"`
}

var (
	signers   = make(map[string]crypto.Signer)
	signersLk sync.Mutex
)

func InitEnv(e mktintf.Env) {
	e.AutoMigrate(&Account{})
}

func (a *Account) save(e mktintf.Env) error {
	return e.Save(a)
}

// PublicKey returns the account's public key as a secp256k1.PublicKey
// object. Returns nil if the stored key fails to decode.
func (a *Account) PublicKey() *secp256k1.PublicKey {
	k, err := base64.RawURLEncoding.DecodeString(a.Pubkey)
	if err != nil {
		return nil
	}
	obj, err := secp256k1.ParsePubKey(k)
	if err != nil {
		return nil
	}
	return obj
}

// check derives the EVM address and URI from the public key.
func (a *Account) check() error {
	pub := a.PublicKey()
	if pub == nil {
		return errors.New("account has no usable public key")
	}
	addr, err := outscript.New(pub).Out("eth").Address()
	if err != nil {
		return err
	}
	a.Address = addr
	a.URI = "ethereum:" + a.Address
	return nil
}

// RegisterSigner attaches the wallet-side signer for an account.
func RegisterSigner(a *Account, s crypto.Signer) {
	signersLk.Lock()
	defer signersLk.Unlock()
	signers[a.Id.String()] = s
}

func dropSigner(id string) {
	signersLk.Lock()
	defer signersLk.Unlock()
	delete(signers, id)
}

// Public implements crypto.Signer.
func (a *Account) Public() crypto.PublicKey {
	return a.PublicKey()
}

// Sign delegates to the registered wallet signer.
func (a *Account) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	signersLk.Lock()
	s := signers[a.Id.String()]
	signersLk.Unlock()
	if s == nil {
		return nil, errors.New("no signer registered for account " + a.Address)
	}
	return s.Sign(rand, digest, opts)
}

// Connect registers a wallet account, makes it current and announces the
// change.
func Connect(e mktintf.Env, name, pubkey string, signer crypto.Signer) (*Account, error) {
	a := &Account{
		Id:     xuid.Must(xuid.FromKeyPrefix("acct."+pubkey, "acct")),
		Name:   name,
		Pubkey: pubkey,
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if err := a.save(e); err != nil {
		return nil, err
	}
	if signer != nil {
		RegisterSigner(a, signer)
	}
	if err := e.SetCurrent("account", a.Id.String()); err != nil {
		return nil, err
	}
	go mktutil.BroadcastMsg("js:accountsChanged", map[string]any{"accounts": []string{a.Address}})
	return a, nil
}

// Disconnect clears the current account.
func Disconnect(e mktintf.Env) error {
	if a, err := CurrentAccount(e); err == nil {
		dropSigner(a.Id.String())
	}
	if err := e.SetCurrent("account", ""); err != nil {
		return err
	}
	go mktutil.BroadcastMsg("js:accountsChanged", map[string]any{"accounts": []string{}})
	return nil
}

func AccountById(e mktintf.Env, id *xuid.XUID) (*Account, error) {
	return mktintf.ByPrimaryKey[Account](e, id)
}

// FindAccount resolves an account by id or by address.
func FindAccount(e mktintf.Env, k string) (*Account, error) {
	if strings.HasPrefix(k, "0x") {
		var a *Account
		err := e.FirstWhere(&a, map[string]any{"Address": k})
		return a, err
	}
	id, err := xuid.ParsePrefix(k, "acct")
	if err != nil {
		return nil, err
	}
	return AccountById(e, id)
}

// CurrentAccount returns the connected account, if any.
func CurrentAccount(e mktintf.Env) (*Account, error) {
	id, err := e.GetCurrent("account")
	if err != nil || id == "" {
		return nil, mktintf.ErrNoAccount
	}
	xid, err := xuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return AccountById(e, xid)
}
