package audit

import (
	"github.com/smallbiznis/memberledger/internal/audit/repository"
	"github.com/smallbiznis/memberledger/internal/audit/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module records forensic entries for webhook postings and dark-entity
// rejections. Entries written here never block a posting.
var Module = fx.Module("audit.sink",
	fx.Decorate(func(log *zap.Logger) *zap.Logger {
		return log.With(zap.String("sink", "audit_logs"))
	}),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
