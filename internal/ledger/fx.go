package ledger

import (
	"go.uber.org/fx"

	"github.com/benangcapital/benang/internal/ledger/repository"
	"github.com/benangcapital/benang/internal/ledger/service"
)

var Module = fx.Module("ledger.projector",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
