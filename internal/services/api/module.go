// Package api mounts the HTTP surface over the pipeline orchestrator
package api

import (
	"altscope/internal/modkit/httpkit"
	"altscope/internal/platform/net/middleware"
	"altscope/internal/services/pipeline"

	"github.com/go-chi/cors"
)

// Module wires handlers to the orchestrator
type Module struct {
	pipe *pipeline.Service
}

// New builds the api module
func New(pipe *pipeline.Service) *Module {
	return &Module{pipe: pipe}
}

// Mount registers middleware and routes on the router
func (m *Module) Mount(r httpkit.Router) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.RecoverJSON)

	r.Route("/api", func(r httpkit.Router) {
		r.Get("/summary", m.getSummary)
		r.Post("/process", m.postProcess)
		r.Route("/channels", func(r httpkit.Router) {
			r.Get("/", m.listChannels)
			r.Route("/{channel}", func(r httpkit.Router) {
				r.Get("/", m.getChannel)
				r.Get("/dates", m.listDates)
				r.Get("/users/{username}", m.getUserDetail)
			})
		})
	})
}
