// Package cli provides a small command-builder scaffold over urfave/cli/v3,
// used by cmd/valuestore to assemble the engine's subcommands.
package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

// CommandExecutor defines the interface for command execution.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd *cli.Command) error
}

// CommandBuilder defines the interface for building commands.
type CommandBuilder interface {
	Name() string
	Description() string
	Usage() string
	Category() string
	Flags() []cli.Flag
	Subcommands() []CommandBuilder
	Build() *cli.Command
}

// MiddlewareFunc wraps a command's action, e.g. to log every invocation or
// enforce the engine is open before running.
type MiddlewareFunc func(next cli.ActionFunc) cli.ActionFunc

// CommandRegistry manages command registration and applies middleware to
// every registered command's action.
type CommandRegistry interface {
	Register(builder CommandBuilder) error
	RegisterMiddleware(middleware MiddlewareFunc)
	GetCommands() []*cli.Command
}
