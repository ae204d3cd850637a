package globals

import (
	"context"

	"sgassist/lib/kvstore"
	"sgassist/lib/scrapers/steamgifts/core"
	"sgassist/services/endless"
	"sgassist/services/mgc"
)

const key = "sgassist.ctx"

type Config struct {
	BaseUrl   string `json:"base_url" env:"SGASSIST_BASE_URL"`
	SessionId string `json:"session_id" env:"SGASSIST_SESSION_ID"`
	Debug     bool   `json:"debug" env:"SGASSIST_DEBUG"`
	// DumpDir receives every http message while debugging when set.
	DumpDir string          `json:"dump_dir"`
	Store   kvstore.Config  `json:"store"`
	Endless endless.Options `json:"endless"`
	Mgc     mgc.Options     `json:"mgc"`
}

type Value struct {
	Config Config
	Client *core.Client
	Store  kvstore.Store
}

func Set(ctx context.Context, value *Value) context.Context {
	return context.WithValue(ctx, key, value)
}

func Get(ctx context.Context) *Value {
	return ctx.Value(key).(*Value)
}
