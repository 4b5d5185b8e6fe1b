package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/session"
)

// Store persists robot data across restarts. It is the session's address
// store as well.
type Store interface {
	session.AddressStore

	// Favorites returns a robot's saved jobs in creation order.
	Favorites(ctx context.Context, robotID string) ([]robot.Favorite, error)

	// SaveFavorites replaces a robot's saved jobs.
	SaveFavorites(ctx context.Context, robotID string, favorites []robot.Favorite) error

	// SaveStatus records the most recent status a robot emitted.
	SaveStatus(ctx context.Context, snap StatusSnapshot) error

	// LoadStatus returns the recorded status. ok is false if there is none.
	LoadStatus(ctx context.Context, robotID string) (snap StatusSnapshot, ok bool, err error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// StatusSnapshot is a status as it was last emitted.
type StatusSnapshot struct {
	RobotID string        `json:"robotId"`
	Status  robot.Status  `json:"status"`
	Derived robot.Derived `json:"derived"`
	Time    time.Time     `json:"time"`
}

// OpenStore opens the backend selected in cfg.Store.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite, "":
		return OpenSQLiteStore(ctx, cfg.Database)
	case config.StoreBackendRedis:
		return NewRedisStore(ctx, cfg.Store.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Store.Backend)
	}
}
