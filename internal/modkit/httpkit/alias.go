// Package httpkit re-exports the platform router surface for service http layers
package httpkit

import (
	phttp "altscope/internal/platform/net/http"
)

// Router is the minimal routing surface service modules mount against
type Router = phttp.Router

// Handler is the platform handler type
type Handler = phttp.Handler
