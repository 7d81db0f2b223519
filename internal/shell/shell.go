// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package shell is the interactive operator surface of the mail queue.
// Every command parses its arguments and delegates to one of the delivery
// services.
package shell

import (
	"context"

	"github.com/abiosoft/ishell"

	"github.com/lukasdietrich/spoolmail/internal/delivery"
)

// Shell is an interactive shell to inspect and manipulate the mail queue.
type Shell struct {
	enqueuer  *delivery.Enqueuer
	processor *delivery.Processor
	previewer *delivery.Previewer
	operator  *delivery.Operator
	cleaner   *delivery.Cleaner
}

// NewShell creates a new shell instance.
func NewShell(
	enqueuer *delivery.Enqueuer,
	processor *delivery.Processor,
	previewer *delivery.Previewer,
	operator *delivery.Operator,
	cleaner *delivery.Cleaner,
) *Shell {
	return &Shell{
		enqueuer:  enqueuer,
		processor: processor,
		previewer: previewer,
		operator:  operator,
		cleaner:   cleaner,
	}
}

// Run starts the shell read loop and blocks until the user exits.
func (s *Shell) Run() error {
	shell := ishell.New()
	s.setupShell(shell)
	shell.Run()

	return nil
}

func (s *Shell) setupShell(shell *ishell.Shell) {
	shell.AddCmd(composeShellCmd(
		ishell.Cmd{
			Name: "queue",
			Help: "inspect the mail queue",
		},
		[]*ishell.Cmd{
			{
				Name: "list",
				Help: "list queued mails, optionally filtered by status",
				Func: wrapShellFunc(s.queueList),
			},
			{
				Name: "show",
				Help: "show a mail with its log history",
				Func: wrapShellFunc(s.queueShow),
			},
			{
				Name: "preview",
				Help: "show the decoded bodies of a mail",
				Func: wrapShellFunc(s.queuePreview),
			},
			{
				Name: "export",
				Help: "write the attachments of a mail to the export folder",
				Func: wrapShellFunc(s.queueExport),
			},
			{
				Name: "add",
				Help: "queue a new mail",
				Func: wrapShellFunc(s.queueAdd),
			},
		},
	))

	shell.AddCmd(composeShellCmd(
		ishell.Cmd{
			Name: "bulk",
			Help: "manipulate many mails at once",
		},
		[]*ishell.Cmd{
			{
				Name: "cancel",
				Help: "cancel pending or failed mails",
				Func: wrapShellFunc(s.bulkCancel),
			},
			{
				Name: "retry",
				Help: "reset failed mails for another round of delivery",
				Func: wrapShellFunc(s.bulkRetry),
			},
			{
				Name: "delete",
				Help: "delete cancelled or failed mails",
				Func: wrapShellFunc(s.bulkDelete),
			},
		},
	))

	shell.AddCmd(&ishell.Cmd{
		Name: "stats",
		Help: "count mails by status",
		Func: wrapShellFunc(s.stats),
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "process",
		Help: "run one processing cycle",
		Func: wrapShellFunc(s.process),
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "clean",
		Help: "run one maintenance sweep",
		Func: wrapShellFunc(s.clean),
	})
}

type shellContext struct {
	context.Context
	shell *ishell.Context
}

func (c *shellContext) checkArgs(min, max int) bool {
	return len(c.shell.Args) >= min && (max < 0 || len(c.shell.Args) <= max)
}

func (c *shellContext) arg(i int) string {
	return c.shell.Args[i]
}

func (c *shellContext) args() []string {
	return c.shell.Args
}

func (c *shellContext) printf(format string, v ...interface{}) {
	c.shell.Printf(format, v...)
}

func (c *shellContext) ask(prompt string) (string, error) {
	c.printf("%s: ", prompt)
	return c.shell.ReadLineErr()
}

func composeShellCmd(cmd ishell.Cmd, children []*ishell.Cmd) *ishell.Cmd {
	for _, child := range children {
		cmd.AddCmd(child)
	}

	return &cmd
}

func wrapShellFunc(fn func(*shellContext) error) func(*ishell.Context) {
	return func(shell *ishell.Context) {
		ctx := shellContext{
			Context: context.Background(),
			shell:   shell,
		}

		if err := fn(&ctx); err != nil {
			shell.Err(err)
		}
	}
}
