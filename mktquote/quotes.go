package mktquote

import (
	"context"
	"encoding/binary"
	"io/fs"
	"math/big"
	"sync"
	"time"

	"github.com/EllipX/ellipxobj"
	"github.com/KarpelesLab/pjson"
	"github.com/KarpelesLab/rest"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
	"github.com/shopspring/decimal"
)

var (
	cachedQuoteData    []*CMCQuoteData
	cachedQuoteDataLk  sync.Mutex
	cachedQuoteDataErr error
	cachedQuoteDataT   time.Time
)

func GetQuotesForToken(e mktintf.Env, token string) (*CMCQuoteData, error) {
	dat, err := getQuotesData(e)
	if err != nil {
		return nil, err
	}
	for _, v := range dat {
		if v.Symbol == token {
			return v, nil
		}
	}
	return nil, fs.ErrNotExist
}

// FiatValue converts a native amount in wei into the given fiat currency
// using the current quote for symbol. Returns fs.ErrNotExist when no quote is
// available.
func FiatValue(e mktintf.Env, symbol, currency string, wei *big.Int) (*ellipxobj.Amount, error) {
	q, err := GetQuotesForToken(e, symbol)
	if err != nil {
		return nil, err
	}
	entry, ok := q.Quote[currency]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return fiatAmount(entry.Price, wei), nil
}

// fiatAmount converts wei at the given fiat price per whole token into an
// 8-decimal fiat amount.
func fiatAmount(price float64, wei *big.Int) *ellipxobj.Amount {
	p := decimal.NewFromFloat(price)
	native := decimal.NewFromBigInt(wei, -18)
	v, _ := native.Mul(p).Round(8).Float64()
	amt, _ := ellipxobj.NewAmountFromFloat64(v, 8)
	return amt
}

func getQuotesData(e mktintf.Env) ([]*CMCQuoteData, error) {
	cachedQuoteDataLk.Lock()
	defer cachedQuoteDataLk.Unlock()

	if time.Since(cachedQuoteDataT) < 5*time.Minute {
		return cachedQuoteData, cachedQuoteDataErr
	}

	buf, err := getQuotesRawDataCache(e)
	if err != nil {
		if cachedQuoteData == nil {
			cachedQuoteDataErr = err
		}
		cachedQuoteDataT = time.Now()
		return nil, err
	}

	// parse json
	var quoteData []*CMCQuoteData
	err = pjson.Unmarshal(buf, &quoteData)
	if err != nil {
		if cachedQuoteData != nil {
			return cachedQuoteData, nil
		}
		return nil, err
	}

	cachedQuoteData = quoteData
	cachedQuoteDataErr = nil
	cachedQuoteDataT = time.Now()

	return quoteData, nil
}

func getQuotesRawDataCache(e mktintf.Env) (pjson.RawMessage, error) {
	// grab from cache
	dat, err := e.DBSimpleGet([]byte("rest_cache"), []byte("Crypto/DataCache:quotes"))
	if err != nil {
		dat, err = getQuotesRawData(e)
		if err != nil {
			return nil, err
		}
		ts := make([]byte, 8)
		binary.BigEndian.PutUint64(ts, uint64(time.Now().Unix()))
		dat = append(ts, dat...)
		e.DBSimpleSet([]byte("rest_cache"), []byte("Crypto/DataCache:quotes"), dat)
	}

	cacheTime := time.Unix(int64(binary.BigEndian.Uint64(dat[:8])), 0)
	if time.Since(cacheTime) <= 5*time.Minute {
		return dat[8:], nil
	}

	// attempt to refresh cache
	newdat, err := getQuotesRawData(e)
	if err != nil {
		// failed, return old stale data
		return dat[8:], nil
	}
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(time.Now().Unix()))
	dat = append(ts, newdat...)
	e.DBSimpleSet([]byte("rest_cache"), []byte("Crypto/DataCache:quotes"), dat)

	return dat[8:], nil
}

func getQuotesRawData(e mktintf.Env) (pjson.RawMessage, error) {
	data, err := rest.Do(context.Background(), "Crypto/DataCache:quotes", "GET", nil)
	if err != nil {
		return nil, err
	}
	return data.Data, nil
}
