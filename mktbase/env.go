package mktbase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/EllipX/ellipxobj"
	"github.com/KarpelesLab/apirouter"
	"github.com/KarpelesLab/emitter"
	"github.com/KarpelesLab/rest"
	"github.com/TheQuantumChronicle/libmarket/mktacct"
	"github.com/TheQuantumChronicle/libmarket/mktcrash"
	"github.com/TheQuantumChronicle/libmarket/mktnet"
	"github.com/TheQuantumChronicle/libmarket/mktnft"
	"github.com/TheQuantumChronicle/libmarket/mktstore"
	"github.com/TheQuantumChronicle/libmarket/mktsync"
	"github.com/TheQuantumChronicle/libmarket/mkttx"
	_ "github.com/glebarez/go-sqlite"
	bolt "go.etcd.io/bbolt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type env struct {
	context.Context
	dataDir string
	db      *bolt.DB
	sql     *gorm.DB
	em      *emitter.Hub

	store  *mktstore.Store
	cache  *mktnft.Cache
	market *mktnet.Market
	engine *mktsync.Engine
	coord  *mkttx.Coordinator

	watchCancel context.CancelFunc
}

func InitEnv(dataDir string) (any, error) {
	e := &env{Context: context.Background(), dataDir: dataDir, em: emitter.New()}
	if err := e.init(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *env) init() error {
	if err := e.initStores(); err != nil {
		return err
	}
	return e.startWatchers()
}

func (e *env) initStores() error {
	// open or create db
	var err error

	rest.Host = mktnet.QuoteAPIHost

	// make sure dataDir exists and is a directory
	if st, err := os.Stat(e.dataDir); err != nil {
		err = os.MkdirAll(e.dataDir, 0755)
		if err != nil {
			return err
		}
	} else if !st.IsDir() {
		return errors.New("dataDir exists but is not a directory")
	}

	// open bolt db
	e.db, err = bolt.Open(filepath.Join(e.dataDir, "data.db"), 0600, nil)
	if err != nil {
		return err
	}

	currentVersion := []byte{0, 0, 0, 1}

	if v, err := e.DBSimpleGet([]byte("info"), []byte("version")); err == nil && bytes.Equal(v, currentVersion) {
		// all good
	} else {
		// set version
		e.DBSimpleSet([]byte("info"), []byte("version"), currentVersion)
	}

	if _, err := e.DBSimpleGet([]byte("info"), []byte("first_run")); err != nil {
		// first run?
		now := ellipxobj.NewTimeId().Bytes(nil)
		e.DBSimpleSet([]byte("info"), []byte("first_run"), now)
	}

	// open sql database
	e.sql, err = gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: filepath.Join(e.dataDir, "sql.db") + "?_pragma=journal_mode(WAL)"}), &gorm.Config{NamingStrategy: schema.NamingStrategy{SingularTable: true, NoLowerCase: true}})
	if err != nil {
		return err
	}

	// create tables
	e.sql.AutoMigrate(&request{})
	e.sql.AutoMigrate(&currentItem{})
	mktnet.InitEnv(e)
	mkttx.InitEnv(e)
	mktacct.InitEnv(e)
	mktnft.InitEnv(e)
	mktcrash.InitEnv(e)

	net, err := mktnet.CurrentNetwork(e)
	if err != nil {
		return err
	}

	e.store = mktstore.New()
	e.cache, err = mktnft.NewCache(e, mktnet.MetadataBaseURI)
	if err != nil {
		return err
	}
	e.market = mktnet.NewMarket(net)
	e.engine = mktsync.New(e, e.market, e.cache, e.store)
	e.coord = mkttx.NewCoordinator(e, e.market, e, e.market, e.store)

	return nil
}

func (e *env) startWatchers() error {
	net, err := mktnet.CurrentNetwork(e)
	if err != nil {
		return err
	}

	var watchCtx context.Context
	watchCtx, e.watchCancel = context.WithCancel(e.Context)
	go mktcrash.Guard(e, "mktnet.WatchLogs", func() { net.WatchLogs(watchCtx, e.em) })
	go mktcrash.Guard(e, "mktsync.Watch", func() { e.engine.Watch(watchCtx, e.em, e.currentAddress) })

	return nil
}

func (e *env) Emitter() *emitter.Hub {
	return e.em
}

// currentAddress returns the connected account's address, or empty when none
// is connected.
func (e *env) currentAddress() string {
	acct, err := mktacct.CurrentAccount(e)
	if err != nil {
		return ""
	}
	return acct.Address
}

func (e *env) ListHelper(ctx context.Context, target any, sort string, searchKey ...string) error {
	var c *apirouter.Context
	if ctx != nil {
		ctx.Value(&c)
	}

	tx := e.sql
	if c != nil {
		tx = tx.Scopes(c.Paginate(50))
	}
	if sort != "" {
		tx = tx.Order(sort)
	}

	if len(searchKey) > 0 {

		if c != nil {
			where := make(map[string]any)
			for _, k := range searchKey {
				if v := c.GetParam(k); v != nil {
					where[k] = v
				}
			}
			if len(where) > 0 {
				tx = tx.Where(where)
			}
		}
	}

	tx = tx.Find(target)
	return tx.Error
}
