// Package client provides a transport-agnostic interface for the corkboard
// service and an HTTP/JSON implementation that talks to the board's REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/presence"
	"github.com/alfredjeanlab/corkboard/internal/store"
)

// BoardClient is the interface the CLI commands and the sync engine use to
// reach a board server. Its store half lets the sync engine commit through
// the server exactly as it would against a local store.
type BoardClient interface {
	store.Store

	// Submit posts one event for fan-out and returns the live channel count.
	Submit(ctx context.Context, ev *model.Event) (int, error)

	// Health reports server liveness.
	Health(ctx context.Context) (*HealthResponse, error)

	// Cursors returns the server's presence snapshot.
	Cursors(ctx context.Context) ([]presence.Entry, error)
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	UptimeSecs  int64  `json:"uptime_secs"`
	Timestamp   int64  `json:"timestamp"`
}
