// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package handlers implements the built-in commands.
package handlers

import (
	"github.com/holomush/loginguard/internal/command"
)

// ChatCommand is the entry that receives plain text.
const ChatCommand = "say"

// RegisterAll registers every built-in command with reg.
// Panics if any registration fails (indicates a programming error).
func RegisterAll(reg *command.Registry) {
	mustRegister := func(entry command.Entry) {
		if err := reg.Register(entry); err != nil {
			panic("failed to register command " + entry.Name + ": " + err.Error())
		}
	}

	mustRegister(command.Entry{
		Name:    "register",
		Aliases: []string{"registrar"},
		Handler: RegisterHandler,
		Help:    "Create an account for your name",
		Usage:   "register <password>",
	})
	mustRegister(command.Entry{
		Name:    "login",
		Aliases: []string{"logar"},
		Handler: LoginHandler,
		Help:    "Log in to your account",
		Usage:   "login <password>",
	})
	mustRegister(command.Entry{
		Name:    "logout",
		Handler: LogoutHandler,
		Help:    "Log out and stay connected",
		Usage:   "logout",
	})
	mustRegister(command.Entry{
		Name:    "changepassword",
		Aliases: []string{"novasenha"},
		Handler: ChangePasswordHandler,
		Help:    "Change your password",
		Usage:   "changepassword <current> <new>",
	})
	mustRegister(command.Entry{
		Name:         "handshake",
		Handler:      HandshakeHandler,
		Help:         "Trusted client login",
		Usage:        "handshake <token>",
		Unrestricted: true,
	})

	mustRegister(command.Entry{
		Name:    ChatCommand,
		Aliases: []string{"chat"},
		Handler: SayHandler,
		Help:    "Talk to everyone online",
		Usage:   "say <message>",
		Chat:    true,
	})
	mustRegister(command.Entry{
		Name:    "move",
		Handler: MoveHandler,
		Help:    "Move to coordinates in your dimension",
		Usage:   "move <x> <y> <z>",
	})
	mustRegister(command.Entry{
		Name:    "travel",
		Handler: TravelHandler,
		Help:    "Travel to another dimension",
		Usage:   "travel <dimension>",
	})
	mustRegister(command.Entry{
		Name:    "where",
		Handler: WhereHandler,
		Help:    "Show your position",
		Usage:   "where",
	})
	mustRegister(command.Entry{
		Name:    "help",
		Handler: HelpHandler(reg),
		Help:    "List commands",
		Usage:   "help",
	})
}
