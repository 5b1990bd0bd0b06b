package nats

import (
	"github.com/zhulik/pal"

	"skein/internal/core"
)

func Provide() pal.ServiceDef {
	return pal.ProvideList(
		pal.Provide(&NATS{}),
		pal.Provide[core.KeyValueClient](&KV{}),
	)
}
