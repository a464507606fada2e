package mktnet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KarpelesLab/xuid"
	"github.com/ModChain/ethrpc"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

// The marketplace runs against one fixed chain; addresses and chain id are
// construction-time constants, not configuration.
const (
	NFTContractAddress    = "0xA4F77aE2f6E33d1F4B6470BfAbF0fbD924525De1"
	MarketContractAddress = "0x5F98cFE4d71F4D8cCad7bEF4B15b7906cb954464"

	MagmaChainId            = "6969696969"
	MagmaChainIdNum  uint64 = 6969696969
	magmaRPC                = "https://turbo.magma-rpc.com"
	magmaWS                 = "wss://turbo.magma-rpc.com"
	magmaExplorer           = "https://magmascan.org"

	MetadataBaseURI = "https://ipfs.io/ipfs/bafybeidbx5abzyox7x6wdyeqgajvcgyovyvkiubkdapdomy464wfeuetnu"

	// backend serving fiat quotes
	QuoteAPIHost = "app.magmamarket.io"
)

type Network struct {
	Id               *xuid.XUID     `gorm:"primaryKey"`
	Type             string         `gorm:"index:typeChain,unique"` // evm
	ChainId          string         `gorm:"index:typeChain,unique"`
	Name             string
	RPC              string         // rpc url, automatic if empty
	validRPC         ethrpc.Handler // valid RPC servers
	CurrencySymbol   string
	CurrencyDecimals int
	BlockExplorer    string
	TestNet          bool
	Created          time.Time `gorm:"autoCreateTime"`
	Updated          time.Time `gorm:"autoUpdateTime"`
}

func InitEnv(e mktintf.Env) {
	e.AutoMigrate(&Network{})
}

func NetworkIdForTypeAndChainId(typ, chainId string) *xuid.XUID {
	return xuid.Must(xuid.FromKeyPrefix(typ+"."+chainId, "net"))
}

// Magma returns the fixed marketplace network, creating its row on first
// use.
func Magma(e mktintf.Env) (*Network, error) {
	var n *Network
	err := e.FirstWhere(&n, map[string]any{"Type": "evm", "ChainId": MagmaChainId})
	if err == nil {
		return n, nil
	}
	n = &Network{
		Type:             "evm",
		ChainId:          MagmaChainId,
		Name:             "Magma Testnet",
		RPC:              magmaRPC,
		CurrencySymbol:   "LAVA",
		CurrencyDecimals: 18,
		BlockExplorer:    magmaExplorer,
		TestNet:          true,
	}
	return n, n.Save(e)
}

// CurrentNetwork resolves the active network, falling back to Magma.
func CurrentNetwork(e mktintf.Env) (*Network, error) {
	id, err := e.GetCurrent("network")
	if err != nil {
		return Magma(e)
	}
	xid, err := xuid.Parse(id)
	if err != nil {
		return nil, err
	}
	if xid.Prefix != "net" {
		return nil, fmt.Errorf("invalid key for network: %s", xid.Prefix)
	}
	return mktintf.ByPrimaryKey[Network](e, xid)
}

func (n *Network) Save(e mktintf.Env) error {
	if n.Id == nil {
		n.Id = xuid.Must(xuid.FromKeyPrefix(n.Type+"."+n.ChainId, "net"))
	}
	return e.Save(n)
}

func (n *Network) SetCurrent(e mktintf.Env) error {
	// broadcast change
	go mktutil.BroadcastMsg("js:chainChanged", map[string]any{"chainId": n.ChainId})
	return e.SetCurrent("network", n.Id.String())
}

func (n *Network) String() string {
	return n.Type + "." + n.ChainId
}

// IsExpected reports whether the session's chain is the marketplace chain.
func (n *Network) IsExpected(sess mktintf.Session) bool {
	return sess.ChainId == n.ChainId
}

func (n *Network) TransactionUrl(txHash string) string {
	if e := n.BlockExplorer; e != "" {
		return fmt.Sprintf("%s/tx/%s", e, txHash)
	}
	return ""
}

func (n *Network) getRPC() ethrpc.Handler {
	if n.validRPC != nil {
		return n.validRPC
	}
	u := n.RPC
	if u == "" {
		u = magmaRPC
	}
	n.validRPC = ethrpc.New(u)
	return n.validRPC
}

func (n *Network) DoRPC(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	return n.getRPC().DoCtx(ctx, method, args...)
}
