package cli

import (
	"github.com/urfave/cli/v3"
)

// BaseCommand provides common command-builder functionality; concrete
// commands embed it and set fields via the fluent Set* methods.
type BaseCommand struct {
	name        string
	description string
	usage       string
	category    string
	flags       []cli.Flag
	subcommands []CommandBuilder
	action      cli.ActionFunc
}

// NewBaseCommand creates a new base command.
func NewBaseCommand(name, description string) *BaseCommand {
	return &BaseCommand{
		name:        name,
		description: description,
		flags:       make([]cli.Flag, 0),
		subcommands: make([]CommandBuilder, 0),
	}
}

func (b *BaseCommand) Name() string        { return b.name }
func (b *BaseCommand) Description() string { return b.description }
func (b *BaseCommand) Usage() string       { return b.usage }
func (b *BaseCommand) Category() string    { return b.category }

func (b *BaseCommand) Flags() []cli.Flag             { return b.flags }
func (b *BaseCommand) Subcommands() []CommandBuilder { return b.subcommands }

func (b *BaseCommand) SetUsage(usage string) *BaseCommand {
	b.usage = usage
	return b
}

func (b *BaseCommand) SetCategory(category string) *BaseCommand {
	b.category = category
	return b
}

func (b *BaseCommand) AddFlag(flag cli.Flag) *BaseCommand {
	b.flags = append(b.flags, flag)
	return b
}

func (b *BaseCommand) AddFlags(flags ...cli.Flag) *BaseCommand {
	b.flags = append(b.flags, flags...)
	return b
}

func (b *BaseCommand) AddSubcommand(subcommand CommandBuilder) *BaseCommand {
	b.subcommands = append(b.subcommands, subcommand)
	return b
}

func (b *BaseCommand) SetAction(action cli.ActionFunc) *BaseCommand {
	b.action = action
	return b
}

// Build assembles the urfave/cli/v3 command, recursively building any
// subcommands.
func (b *BaseCommand) Build() *cli.Command {
	cmd := &cli.Command{
		Name:        b.name,
		Usage:       b.usage,
		Description: b.description,
		Category:    b.category,
		Flags:       b.flags,
		Action:      b.action,
	}

	if len(b.subcommands) > 0 {
		subCmds := make([]*cli.Command, 0, len(b.subcommands))
		for _, subBuilder := range b.subcommands {
			subCmds = append(subCmds, subBuilder.Build())
		}
		cmd.Commands = subCmds
	}

	return cmd
}
