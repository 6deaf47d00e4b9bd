package business

import (
	"context"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/lexislearn/admin-gateway/internal/activity"
	activitysql "github.com/lexislearn/admin-gateway/internal/activity/sql"
	"github.com/lexislearn/admin-gateway/internal/config"
)

// HousekeeperMain prunes the activity log on every trigger interval
// until ctx is cancelled.
func HousekeeperMain(ctx context.Context, cfg *config.Config) error {
	db, err := initDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise the activity database: %w", err)
	}
	defer db.Close()

	return housekeep(ctx, cfg.Housekeeper, activity.NewService(activitysql.NewRepository(db)))
}

func housekeep(ctx context.Context, cfg config.Housekeeper, svc *activity.Service) error {
	c := time.Tick(cfg.TriggerInterval)
	for {
		_, err := svc.Prune(ctx, cfg.ActivityRetention)
		if err != nil {
			slogctx.Error(ctx, "Error during activity housekeeping", "error", err)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}
