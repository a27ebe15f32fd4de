package main

import (
	"context"
	"time"

	"altscope/internal/modkit"
	"altscope/internal/platform/config"
	"altscope/internal/platform/logger"
	phttp "altscope/internal/platform/net/http"
	"altscope/internal/platform/store"

	"altscope/internal/services/analytics"
	"altscope/internal/services/api"
	"altscope/internal/services/ingest"
	"altscope/internal/services/messages"
	"altscope/internal/services/pipeline"
)

func main() {
	// service-scoped config (CORE_API_*), storage under SERVICE_SQLITE_*,
	// processing knobs under PIPELINE_*
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	dbCfg := root.Prefix("SERVICE_SQLITE_")
	pipeCfg := root.Prefix("PIPELINE_")

	// bring up logging early
	l := logger.Get()

	st, err := store.Open(
		context.Background(),
		store.Config{
			SQLite: store.SQLiteConfig{
				Enabled:       true,
				Path:          dbCfg.MayString("PATH", "data/altscope.db"),
				BusyTimeoutMs: dbCfg.MayInt("BUSY_TIMEOUT_MS", 5000),
				MaxConns:      dbCfg.MayInt("MAX_CONNS", 4),
				LogSQL:        dbCfg.MayBool("LOG_SQL", false),
			},
		},
		store.WithLogger(*l),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{Cfg: root, Log: l, DB: st.SQL}

	msgs := messages.NewService(deps)
	ing := ingest.NewService(deps, msgs, pipeCfg.MayString("LOGS_DIR", "logs"))
	an := analytics.NewService(deps, analytics.Config{
		Threshold:  pipeCfg.MayFloat64("SIMILARITY_THRESHOLD", 0),
		Window:     pipeCfg.MayDuration("COPRESENCE_WINDOW", 0),
		TopSimilar: pipeCfg.MayInt("TOP_SIMILAR", 0),
	})
	pipe := pipeline.NewService(deps, msgs, ing, an)

	// background processing loop
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pipe.Run(ctx, pipeCfg.MayDuration("INTERVAL", time.Minute))

	// http server (reads CORE_API_PORT)
	srv := phttp.NewServer(apiCfg)
	api.New(pipe).Mount(srv.Router())

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
