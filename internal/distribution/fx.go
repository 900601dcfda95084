package distribution

import (
	"go.uber.org/fx"

	"github.com/benangcapital/benang/internal/distribution/repository"
	"github.com/benangcapital/benang/internal/distribution/service"
)

var Module = fx.Module("distribution.engine",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
