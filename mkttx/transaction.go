package mkttx

import (
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/EllipX/ellipxobj"
	"github.com/KarpelesLab/xuid"
	"github.com/ModChain/ethrpc"
	"github.com/ModChain/outscript"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktnet"
)

// Transaction is one marketplace write call on its way to the chain.
type Transaction struct {
	Id       *xuid.XUID        `json:"id,omitempty" gorm:"primaryKey"`
	Type     string            `json:"type"` // mint, list, cancelSale, makeOffer, acceptOffer, cancelOffer, buy, transfer, approve
	From     string            `json:"from,omitempty"`
	To       string            `json:"to"` // contract address
	Gas      uint64            `json:"gas"`
	GasPrice string            `json:"gasPrice,omitempty"`
	Fee      *ellipxobj.Amount `json:"fee,omitempty" gorm:"serializer:json"`
	Nonce    uint64            `json:"nonce"`
	Format   string            `json:"format,omitempty"` // legacy for now
	Raw      []byte            `json:"raw,omitempty"`
	Hash     string            `json:"hash,omitempty"`
	URL      string            `json:"url,omitempty"`
	Network  *xuid.XUID        `json:"network,omitempty"`
	Value    *ellipxobj.Amount `json:"value,omitempty" gorm:"serializer:json"`
	Data     string            `json:"data,omitempty"`
	TokenId  string            `json:"token_id,omitempty"`
	Status   string            `json:"status,omitempty"` // pending | confirmed | reverted | rejected
	Created  *time.Time        `json:"created,omitempty" gorm:"autoCreateTime"`

	FiatValue    *ellipxobj.Amount `json:"fiat_value,omitempty" gorm:"-:all"`
	FiatCurrency string            `json:"fiat_currency,omitempty" gorm:"-:all"`
}

func InitEnv(e mktintf.Env) {
	e.AutoMigrate(&Transaction{})
}

func (tx *Transaction) save(e mktintf.Env) error {
	if tx.Id == nil {
		var err error
		tx.Id, err = xuid.NewRandom("tx")
		if err != nil {
			return err
		}
	}
	return e.Save(tx)
}

// FromCall builds a transaction out of a prepared contract call.
func FromCall(typ, from string, call mktintf.ContractCall) *Transaction {
	tx := &Transaction{
		Type: typ,
		From: from,
		To:   call.To,
		Data: call.Data,
	}
	if call.Value != nil && call.Value.Sign() > 0 {
		tx.Value = ellipxobj.NewAmountRaw(call.Value, 18)
	}
	return tx
}

// Validate fills in everything the chain needs to accept the transaction:
// nonce, gas limit and gas price, then the resulting fee.
func (tx *Transaction) Validate(ctx context.Context, n *mktnet.Network) error {
	if tx == nil {
		return errors.New("error: nil tx")
	}
	if tx.From == "" {
		return errors.New("from is required")
	}
	if tx.To == "" {
		return errors.New("to is required")
	}
	tx.Network = n.Id

	if tx.Nonce == 0 {
		txc, err := ethrpc.ReadUint64(n.DoRPC(ctx, "eth_getTransactionCount", tx.From, "pending"))
		if err != nil {
			return err
		}
		tx.Nonce = txc
	}

	if tx.Gas == 0 {
		if err := tx.estimateGas(ctx, n); err != nil {
			return err
		}
	}

	if tx.GasPrice == "" {
		v, err := ethrpc.ReadBigInt(n.DoRPC(ctx, "eth_gasPrice"))
		if err != nil {
			return err
		}
		tx.GasPrice = v.String()
	}

	if err := tx.computeFee(n); err != nil {
		return err
	}

	if tx.Format == "" {
		tx.Format = "legacy"
	}
	return nil
}

func (tx *Transaction) estimateGas(ctx context.Context, n *mktnet.Network) error {
	v := make(map[string]any)
	if tx.Data != "" {
		v["data"] = tx.Data
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		v["value"] = "0x" + tx.Value.Value().Text(16)
	}
	if tx.From != "" {
		v["from"] = tx.From
	}
	if tx.To != "" {
		v["to"] = tx.To
	}

	gas, err := ethrpc.ReadUint64(n.DoRPC(ctx, "eth_estimateGas", v))
	if err != nil {
		return err
	}
	tx.Gas = gas
	return nil
}

func (tx *Transaction) computeFee(n *mktnet.Network) error {
	// fee = gas*gasPrice
	gp, ok := new(big.Int).SetString(tx.GasPrice, 0)
	if !ok {
		return errors.New("invalid gasprice")
	}

	amt := ellipxobj.NewAmountRaw(gp, n.CurrencyDecimals)
	gas := ellipxobj.NewAmount(int64(tx.Gas), 0)
	tx.Fee = amt.Dup().Mul(amt, gas)
	return nil
}

func (tx *Transaction) encodeTx(signer crypto.Signer, signopts crypto.SignerOpts) (*outscript.EvmTx, error) {
	switch tx.Format {
	case "legacy", "":
		v, ok := new(big.Int).SetString(tx.GasPrice, 0)
		if !ok {
			return nil, errors.New("invalid gasPrice")
		}
		res := &outscript.EvmTx{
			Type:      outscript.EvmTxLegacy,
			Nonce:     tx.Nonce,
			GasFeeCap: v,
			Gas:       tx.Gas,
			To:        tx.To,
			Value:     new(big.Int),
			ChainId:   mktnet.MagmaChainIdNum,
		}
		if tx.Value != nil && tx.Value.Sign() > 0 {
			res.Value = tx.Value.Value()
		}
		if data := tx.Data; data != "" {
			data, ok := strings.CutPrefix(data, "0x")
			if !ok {
				return nil, errors.New("bad tx.Data: must start with 0x or be empty")
			}
			dataBin, err := hex.DecodeString(data)
			if err != nil {
				return nil, err
			}
			res.Data = dataBin
		}
		err := res.SignWithOptions(signer, signopts)
		return res, err
	default:
		return nil, fmt.Errorf("unsupported transaction format %s", tx.Format)
	}
}

// SignAndSend signs the transaction with the account signer and pushes it.
func (tx *Transaction) SignAndSend(ctx context.Context, e mktintf.Env, n *mktnet.Network, signer crypto.Signer, signopts crypto.SignerOpts) error {
	now := time.Now()
	tx.Created = &now

	data, err := tx.encodeTx(signer, signopts)
	if err != nil {
		return err
	}
	buf, err := data.MarshalBinary()
	if err != nil {
		return err
	}
	tx.Raw = buf
	tx.Status = "pending"

	if err := tx.save(e); err != nil {
		return err
	}

	hash, err := ethrpc.ReadString(n.DoRPC(ctx, "eth_sendRawTransaction", "0x"+hex.EncodeToString(buf)))
	if err != nil {
		return err
	}
	tx.Hash = hash
	tx.URL = n.TransactionUrl(tx.Hash)
	if err := tx.save(e); err != nil {
		log.Printf("failed to persist transaction %s: %s", tx.Hash, err)
	}

	return nil
}

// SetStatus records the transaction outcome.
func (tx *Transaction) SetStatus(e mktintf.Env, status string) {
	tx.Status = status
	if tx.Id != nil {
		if err := e.Save(tx); err != nil {
			log.Printf("failed to persist transaction status: %s", err)
		}
	}
}
