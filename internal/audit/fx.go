package audit

import (
	"github.com/benangcapital/benang/internal/audit/repository"
	"github.com/benangcapital/benang/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
