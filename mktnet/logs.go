package mktnet

import (
	"context"
	"encoding/json"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/KarpelesLab/emitter"
	"github.com/gorilla/websocket"
	"github.com/TheQuantumChronicle/libmarket/mktutil"
)

// Marketplace event topics we care about.
var (
	saleCancelledTopic = mktutil.EventTopic("NFTSaleCancelled(uint256,address)")
	soldTopic          = mktutil.EventTopic("NFTSold(uint256,address,address,uint256)")
	listedTopic        = mktutil.EventTopic("NFTListed(uint256,uint256,address)")
)

// Emitter topic carrying (eventName, tokenId) pairs decoded from contract
// logs.
const LogTopic = "market:log"

type wsRequest struct {
	Id      int    `json:"id"`
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Address string   `json:"address"`
			Topics  []string `json:"topics"`
			Data    string   `json:"data"`
		} `json:"result"`
	} `json:"params"`
}

// WatchLogs keeps a websocket subscription on the marketplace contract's
// logs and republishes decoded events on the hub. Reconnects on failure
// until ctx ends.
func (n *Network) WatchLogs(ctx context.Context, hub *emitter.Hub) {
	for {
		if err := n.streamLogs(ctx, hub); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("log subscription dropped: %s", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (n *Network) streamLogs(ctx context.Context, hub *emitter.Hub) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, magmaWS, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := &wsRequest{
		Id:      1,
		Jsonrpc: "2.0",
		Method:  "eth_subscribe",
		Params:  []any{"logs", map[string]any{"address": MarketContractAddress}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	// close the socket when ctx ends so ReadMessage unblocks
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var notif wsNotification
		if err := json.Unmarshal(buf, &notif); err != nil || notif.Method != "eth_subscription" {
			continue
		}
		name, tokenId, ok := decodeMarketLog(notif.Params.Result.Topics)
		if !ok {
			continue
		}
		hub.Emit(ctx, LogTopic, name, tokenId)
	}
}

// decodeMarketLog maps topic0 to an event name and extracts the indexed
// token id from topic1.
func decodeMarketLog(topics []string) (name, tokenId string, ok bool) {
	if len(topics) < 2 {
		return "", "", false
	}
	switch strings.ToLower(topics[0]) {
	case saleCancelledTopic:
		name = "NFTSaleCancelled"
	case soldTopic:
		name = "NFTSold"
	case listedTopic:
		name = "NFTListed"
	default:
		return "", "", false
	}
	raw, err := mktutil.HexData(topics[1])
	if err != nil {
		return "", "", false
	}
	return name, new(big.Int).SetBytes(raw).String(), true
}
