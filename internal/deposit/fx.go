package deposit

import (
	"go.uber.org/fx"

	"github.com/benangcapital/benang/internal/deposit/repository"
	"github.com/benangcapital/benang/internal/deposit/service"
)

var Module = fx.Module("deposit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
