// Package services bundles the long-lived cortex components so the HTTP
// and MCP front ends are built from one place.
package services

import (
	"github.com/fyrsmithlabs/cortex/internal/events"
	"github.com/fyrsmithlabs/cortex/internal/journal"
	"github.com/fyrsmithlabs/cortex/internal/telemetry"
)

// Registry provides access to the cortex services.
type Registry interface {
	Journal() *journal.Service
	Publisher() events.Publisher
	Telemetry() *telemetry.Telemetry
	Version() string
}

// Options configures the registry with service instances.
type Options struct {
	Journal   *journal.Service
	Publisher events.Publisher
	Telemetry *telemetry.Telemetry
	Version   string
}

type registry struct {
	journal   *journal.Service
	publisher events.Publisher
	telemetry *telemetry.Telemetry
	version   string
}

// NewRegistry creates a registry. A nil Publisher becomes a no-op.
func NewRegistry(opts Options) Registry {
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	return &registry{
		journal:   opts.Journal,
		publisher: opts.Publisher,
		telemetry: opts.Telemetry,
		version:   opts.Version,
	}
}

func (r *registry) Journal() *journal.Service       { return r.journal }
func (r *registry) Publisher() events.Publisher     { return r.publisher }
func (r *registry) Telemetry() *telemetry.Telemetry { return r.telemetry }
func (r *registry) Version() string                 { return r.version }
