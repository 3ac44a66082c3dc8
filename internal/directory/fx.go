package directory

import (
	"github.com/smallbiznis/memberledger/internal/directory/cache"
	"github.com/smallbiznis/memberledger/internal/directory/repository"
	"github.com/smallbiznis/memberledger/internal/directory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("directory.service",
	fx.Provide(cache.NewClient),
	fx.Provide(cache.ProvideMemberCache),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
