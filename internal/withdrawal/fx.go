package withdrawal

import (
	"go.uber.org/fx"

	"github.com/benangcapital/benang/internal/withdrawal/repository"
	"github.com/benangcapital/benang/internal/withdrawal/service"
)

var Module = fx.Module("withdrawal.gate",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
