package equipment

import (
	"go.uber.org/fx"

	"github.com/benangcapital/benang/internal/equipment/repository"
	"github.com/benangcapital/benang/internal/equipment/service"
)

var Module = fx.Module("equipment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
