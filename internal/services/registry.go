package services

import (
	"errors"

	"github.com/fyrsmithlabs/triad/internal/events"
	"github.com/fyrsmithlabs/triad/internal/search"
	"github.com/fyrsmithlabs/triad/internal/terminal"
	"github.com/fyrsmithlabs/triad/internal/workspace"
	"github.com/fyrsmithlabs/triad/pkg/secrets"
)

// Registry provides access to all triad services. Use accessor methods
// to retrieve individual services.
type Registry interface {
	Workflows() *WorkflowService
	Workspace() *workspace.Store
	Terminal() *terminal.Executor
	Search() search.Provider
	Bus() events.Bus
	Scrubber() *secrets.Scrubber
	Close()
}

// Options configures the registry with service instances. Workflows and
// Bus are required; Terminal, Search and Scrubber may be nil when the
// corresponding feature is disabled.
type Options struct {
	Workflows *WorkflowService
	Workspace *workspace.Store
	Terminal  *terminal.Executor
	Search    search.Provider
	Bus       events.Bus
	Scrubber  *secrets.Scrubber
}

// Validate checks that the required services are present.
func (o Options) Validate() error {
	if o.Workflows == nil {
		return errors.New("services: workflow service is required")
	}
	if o.Workspace == nil {
		return errors.New("services: workspace store is required")
	}
	if o.Bus == nil {
		return errors.New("services: event bus is required")
	}
	return nil
}

// registry is the concrete implementation of Registry.
type registry struct {
	workflows *WorkflowService
	workspace *workspace.Store
	terminal  *terminal.Executor
	search    search.Provider
	bus       events.Bus
	scrubber  *secrets.Scrubber
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) (Registry, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &registry{
		workflows: opts.Workflows,
		workspace: opts.Workspace,
		terminal:  opts.Terminal,
		search:    opts.Search,
		bus:       opts.Bus,
		scrubber:  opts.Scrubber,
	}, nil
}

func (r *registry) Workflows() *WorkflowService { return r.workflows }
func (r *registry) Workspace() *workspace.Store { return r.workspace }
func (r *registry) Terminal() *terminal.Executor { return r.terminal }
func (r *registry) Search() search.Provider     { return r.search }
func (r *registry) Bus() events.Bus             { return r.bus }
func (r *registry) Scrubber() *secrets.Scrubber { return r.scrubber }

// Close shuts down the workflow service and the event bus, in that
// order, so in-flight publishes still have a transport.
func (r *registry) Close() {
	r.workflows.Close()
	r.bus.Close()
}
