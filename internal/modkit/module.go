// Package modkit carries the shared dependencies handed to every service
package modkit

import (
	"altscope/internal/modkit/repokit"
	"altscope/internal/platform/config"
	"altscope/internal/platform/logger"
)

// Deps is the dependency bundle services are constructed with
type Deps struct {
	Cfg config.Conf
	Log *logger.Logger
	DB  repokit.TxRunner
}

// MustDB panics early when a service requires the database and it is absent
func (d Deps) MustDB() repokit.TxRunner {
	if d.DB == nil {
		panic("modkit: service requires a non nil TxRunner")
	}
	return d.DB
}
