// altscope-process runs one processing pass and exits. Useful from cron or
// before serving a fresh database
package main

import (
	"context"
	"flag"

	"altscope/internal/modkit"
	"altscope/internal/platform/config"
	"altscope/internal/platform/logger"
	"altscope/internal/platform/store"

	"altscope/internal/services/analytics"
	"altscope/internal/services/ingest"
	"altscope/internal/services/messages"
	"altscope/internal/services/pipeline"
)

func main() {
	channel := flag.String("channel", "", "process a single channel (default all)")
	flag.Parse()

	root := config.New()
	dbCfg := root.Prefix("SERVICE_SQLITE_")
	pipeCfg := root.Prefix("PIPELINE_")

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

	summary, err := pipe.RunOnce(context.Background(), *channel)
	if err != nil {
		l.Panic().Err(err).Msg("processing run failed")
	}
	l.Info().
		Int("files_scanned", summary.FilesScanned).
		Int64("new_lines", summary.NewLines).
		Int("parse_failures", summary.ParseFailures).
		Int("users_affected", summary.UsersAffected).
		Msg("processing complete")
}
