package mktnft

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KarpelesLab/xuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
)

const memoSize = 4096

// Cache resolves a token id to its Record. Lookup order: in-memory LRU,
// sqlite row, remote fetch. A fetched record is persisted and memoized;
// a failed fetch is returned as an error and nothing is cached, so a later
// retry re-attempts the read.
type Cache struct {
	env     mktintf.Env
	baseURI string
	memo    *lru.Cache[string, *Record]
}

func NewCache(e mktintf.Env, baseURI string) (*Cache, error) {
	memo, err := lru.New[string, *Record](memoSize)
	if err != nil {
		return nil, err
	}
	return &Cache{env: e, baseURI: baseURI, memo: memo}, nil
}

// Get returns the metadata record for tokenId, fetching it once.
func (c *Cache) Get(ctx context.Context, tokenId string) (*Record, error) {
	if rec, ok := c.memo.Get(tokenId); ok {
		return rec, nil
	}

	var rec *Record
	if err := c.env.FirstWhere(&rec, map[string]any{"TokenId": tokenId}); err == nil {
		c.memo.Add(tokenId, rec)
		return rec, nil
	}

	rec, err := c.fetch(ctx, tokenId)
	if err != nil {
		return nil, err
	}
	c.memo.Add(tokenId, rec)
	return rec, nil
}

func (c *Cache) fetch(ctx context.Context, tokenId string) (*Record, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURI, tokenId)
	// metadata is content-addressed, a long refresh window is fine
	buf, err := c.env.CacheGet(ctx, u, 30*time.Second, 30*24*time.Hour)
	if err != nil {
		return nil, &mktintf.RemoteReadError{Op: "metadata " + tokenId, Err: err}
	}

	var rec *Record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, &mktintf.RemoteReadError{Op: "metadata " + tokenId, Err: err}
	}

	rec.Id = xuid.Must(xuid.FromKeyPrefix("nft."+tokenId, "nft"))
	rec.TokenId = tokenId
	if err := c.env.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}
