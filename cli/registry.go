package cli

import (
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"
)

// Registry collects command builders and wraps every command's action with
// the registered middleware chain, applied in registration order (the
// first-registered middleware runs outermost).
type Registry struct {
	mu          sync.RWMutex
	commands    []CommandBuilder
	middlewares []MiddlewareFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:    make([]CommandBuilder, 0),
		middlewares: make([]MiddlewareFunc, 0),
	}
}

// Register adds builder, failing if a command with the same name already
// exists.
func (r *Registry) Register(builder CommandBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.commands {
		if existing.Name() == builder.Name() {
			return fmt.Errorf("command %q already registered", builder.Name())
		}
	}
	r.commands = append(r.commands, builder)
	return nil
}

// RegisterMiddleware appends middleware to the chain applied to every
// command's action.
func (r *Registry) RegisterMiddleware(middleware MiddlewareFunc) {
	r.mu.Lock()
	r.middlewares = append(r.middlewares, middleware)
	r.mu.Unlock()
}

// GetCommands builds every registered command, with middleware applied.
func (r *Registry) GetCommands() []*cli.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make([]*cli.Command, 0, len(r.commands))
	for _, builder := range r.commands {
		commands = append(commands, r.buildWithMiddleware(builder))
	}
	return commands
}

func (r *Registry) buildWithMiddleware(builder CommandBuilder) *cli.Command {
	cmd := builder.Build()
	if cmd.Action != nil {
		action := cmd.Action
		for i := len(r.middlewares) - 1; i >= 0; i-- {
			action = r.middlewares[i](action)
		}
		cmd.Action = action
	}

	if len(builder.Subcommands()) > 0 {
		subCmds := make([]*cli.Command, 0, len(builder.Subcommands()))
		for _, subBuilder := range builder.Subcommands() {
			subCmds = append(subCmds, r.buildWithMiddleware(subBuilder))
		}
		cmd.Commands = subCmds
	}

	return cmd
}
