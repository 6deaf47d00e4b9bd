package business

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/lexislearn/admin-gateway/internal/activity"
	activitysql "github.com/lexislearn/admin-gateway/internal/activity/sql"
	"github.com/lexislearn/admin-gateway/internal/backend"
	"github.com/lexislearn/admin-gateway/internal/business/server"
	"github.com/lexislearn/admin-gateway/internal/config"
	"github.com/lexislearn/admin-gateway/internal/session"
	sessionvalkey "github.com/lexislearn/admin-gateway/internal/session/valkey"
)

// Main starts the gateway HTTP server and blocks until ctx is cancelled.
func Main(ctx context.Context, cfg *config.Config) error {
	deps, err := initDependencies(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising dependencies: %w", err)
	}
	defer deps.close()

	gw := server.NewGateway(
		backend.NewClient(cfg.Backend),
		deps.sessions,
		deps.activity,
	)

	slogctx.Info(ctx, "Starting the gateway", "backend", cfg.Backend.URL)

	return server.StartHTTPServer(ctx, cfg, gw)
}

type dependencies struct {
	db       *pgxpool.Pool
	valkey   valkey.Client
	sessions *session.Manager
	activity *activity.Service
}

func (d *dependencies) close() {
	if d.valkey != nil {
		d.valkey.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

func initDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("making dsn from config: %w", err)
	}

	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	return db, nil
}

func initValkey(cfg *config.Config) (valkey.Client, error) {
	valkeyOpts, err := config.MakeValkeyOptions(cfg.ValKey)
	if err != nil {
		return nil, fmt.Errorf("making valkey options from config: %w", err)
	}

	client, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return client, nil
}

func initDependencies(ctx context.Context, cfg *config.Config) (_ *dependencies, err error) {
	deps := &dependencies{}
	defer func() {
		if err != nil {
			deps.close()
		}
	}()

	deps.db, err = initDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps.valkey, err = initValkey(cfg)
	if err != nil {
		return nil, err
	}

	deps.sessions = session.NewManager(&cfg.Session, sessionvalkey.NewRepository(deps.valkey, cfg.ValKey.Prefix))
	deps.activity = activity.NewService(activitysql.NewRepository(deps.db))

	return deps, nil
}
