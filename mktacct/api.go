package mktacct

import (
	"errors"

	"github.com/KarpelesLab/apirouter"
	"github.com/KarpelesLab/pobj"
	"github.com/KarpelesLab/xuid"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
)

func init() {
	pobj.RegisterActions[Account]("Account",
		&pobj.ObjectActions{
			Fetch: pobj.Static(apiFetchAccount),
			List:  pobj.Static(apiListAccount),
		},
	)
	pobj.RegisterStatic("Account:disconnect", apiDisconnect)
}

func HasAccount(e mktintf.Env) bool {
	return e.Count(&Account{}) > 0
}

func apiFetchAccount(ctx *apirouter.Context, in struct{ Id string }) (any, error) {
	e := mktintf.GetEnv(ctx)
	if e == nil {
		return nil, errors.New("failed to get env")
	}

	if in.Id == "@" {
		return CurrentAccount(e)
	}

	id, err := xuid.Parse(in.Id)
	if err != nil {
		return nil, err
	}

	return AccountById(e, id)
}

func apiListAccount(ctx *apirouter.Context) (any, error) {
	return mktintf.ListHelper[Account](ctx, "Created ASC")
}

func apiDisconnect(ctx *apirouter.Context) (any, error) {
	e := mktintf.GetEnv(ctx)
	if e == nil {
		return nil, errors.New("failed to get env")
	}
	return nil, Disconnect(e)
}
