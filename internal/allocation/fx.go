package allocation

import (
	"go.uber.org/fx"

	"github.com/benangcapital/benang/internal/allocation/repository"
	"github.com/benangcapital/benang/internal/allocation/service"
)

var Module = fx.Module("allocation.engine",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
