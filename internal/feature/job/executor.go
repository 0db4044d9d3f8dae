package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/premium/internal/config"
	"github.com/smallbiznis/premium/internal/event"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/jobqueue"
	jobdomain "github.com/smallbiznis/premium/internal/jobqueue/domain"
	"github.com/smallbiznis/premium/internal/observability/metrics"
	"github.com/smallbiznis/premium/internal/reference"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultBatchSize = 200
	reconcileLockTTL = 30 * time.Minute
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Manager       domain.Manager
	Repo          domain.Repository
	Resolver      *reference.Resolver
	Bus           *event.Bus
	Config        config.Config          `optional:"true"`
	Locker        jobdomain.Locker       `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
	WorkerMetrics *metrics.WorkerMetrics `optional:"true"`
}

// deps is shared by the three feature executors.
type deps struct {
	db            *gorm.DB
	log           *zap.Logger
	manager       domain.Manager
	repo          domain.Repository
	resolver      *reference.Resolver
	bus           *event.Bus
	locker        jobdomain.Locker
	metrics       *metrics.Metrics
	workerMetrics *metrics.WorkerMetrics
	batchSize     int
}

func newDeps(p Params, name string) deps {
	batchSize := p.Config.ReconcileBatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return deps{
		db:            p.DB,
		log:           p.Log.Named(name),
		manager:       p.Manager,
		repo:          p.Repo,
		resolver:      p.Resolver,
		bus:           p.Bus,
		locker:        p.Locker,
		metrics:       p.Metrics,
		workerMetrics: p.WorkerMetrics,
		batchSize:     batchSize,
	}
}

func decode(payload []byte, dst interface{ Validate() error }) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return jobqueue.Permanent(fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
	}
	if err := dst.Validate(); err != nil {
		return jobqueue.Permanent(err)
	}
	return nil
}

// classify marks errors that no retry can fix as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrUnknownFeature),
		errors.Is(err, domain.ErrUnknownParameter),
		errors.Is(err, domain.ErrInvalidCandidate),
		errors.Is(err, domain.ErrStrategyMisconfigured),
		errors.Is(err, reference.ErrInvalidRef),
		errors.Is(err, reference.ErrUnknownKind),
		errors.Is(err, reference.ErrNotFound),
		errors.Is(err, reference.ErrNotReferenceable):
		return jobqueue.Permanent(err)
	}
	return err
}
