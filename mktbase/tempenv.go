package mktbase

import (
	"context"
	"errors"
	"os"

	"github.com/KarpelesLab/emitter"
)

// InitTempEnv creates a fully working environment backed by a throwaway data
// directory. The background watchers are not started, tests drive everything
// directly.
func InitTempEnv() (any, error) {
	dir, err := os.MkdirTemp("", "libmarket-test-*")
	if err != nil {
		return nil, err
	}
	e := &env{Context: context.Background(), dataDir: dir, em: emitter.New()}
	if err := e.initStores(); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return e, nil
}

// CleanupTempEnv releases everything InitTempEnv opened and removes the data
// directory.
func CleanupTempEnv(v any) error {
	e, ok := v.(*env)
	if !ok {
		return errors.New("not a valid env")
	}
	if e.watchCancel != nil {
		e.watchCancel()
	}
	if e.db != nil {
		e.db.Close()
	}
	if e.sql != nil {
		if sqlDB, err := e.sql.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return os.RemoveAll(e.dataDir)
}
