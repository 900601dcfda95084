package product

import (
	"go.uber.org/fx"

	"github.com/benangcapital/benang/internal/product/repository"
	"github.com/benangcapital/benang/internal/product/service"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
