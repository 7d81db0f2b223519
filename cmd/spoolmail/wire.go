// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/lukasdietrich/spoolmail/internal/database"
	"github.com/lukasdietrich/spoolmail/internal/delivery"
	"github.com/lukasdietrich/spoolmail/internal/priority"
	"github.com/lukasdietrich/spoolmail/internal/shell"
	"github.com/lukasdietrich/spoolmail/internal/storage"
)

var wireSet = wire.NewSet(
	wire.Struct(new(startCommand), "*"),
	wire.Struct(new(processCommand), "*"),
	wire.Struct(new(shellCommand), "*"),

	database.WireSet,
	storage.WireSet,
	priority.WireSet,
	delivery.WireSet,
	shell.WireSet,
)

func newStartCommand() (*startCommand, error) {
	panic(wire.Build(wireSet))
}

func newProcessCommand() (*processCommand, error) {
	panic(wire.Build(wireSet))
}

func newShellCommand() (*shellCommand, error) {
	panic(wire.Build(wireSet))
}
