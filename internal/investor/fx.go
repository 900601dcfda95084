package investor

import (
	"go.uber.org/fx"

	"github.com/benangcapital/benang/internal/investor/repository"
	"github.com/benangcapital/benang/internal/investor/service"
)

var Module = fx.Module("investor.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
