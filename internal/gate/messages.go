// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/loginguard/internal/auth"
	"github.com/holomush/loginguard/internal/session"
)

const banner = "=================================="

// Usage lines.
const (
	LoginUsage    = "/login <password>"
	RegisterUsage = "/register <password>"
)

// ForceLoginNotice is sent to a player logged in from the control socket.
const ForceLoginNotice = "You were force-logged in by the server console!"

// PasswordChangedMessage confirms a password change.
const PasswordChangedMessage = "Your password was changed successfully!"

func lines(parts ...string) string {
	return strings.Join(parts, "\n")
}

func welcomeMessage(name string, registered bool, timeout time.Duration, maxAttempts int) string {
	out := []string{banner, "        LoginGuard", banner, ""}
	if registered {
		out = append(out,
			"Welcome back, "+name+"!",
			"Log in to continue:",
			LoginUsage,
		)
	} else {
		out = append(out,
			"Welcome to the server, "+name+"!",
			"You need to register first:",
			RegisterUsage,
			"Pick a password you will remember!",
		)
	}
	out = append(out,
		"",
		"IMPORTANT:",
		"- You cannot move until you log in",
		"- You cannot interact with the world",
		"- You have "+session.FormatRemaining(timeout)+" to log in",
		"- At most "+strconv.Itoa(maxAttempts)+" login attempts",
		"",
		banner,
	)
	return lines(out...)
}

func successMessage(name string, registration bool) string {
	head, greet := "LOGIN SUCCESSFUL!", "Welcome back, "+name+"!"
	if registration {
		head, greet = "REGISTRATION SUCCESSFUL!", "Welcome, "+name+"!"
	}
	out := []string{
		head,
		"",
		greet,
		"You can now:",
		"- Move freely",
		"- Interact with the world",
		"- Use every command",
		"- Chat",
	}
	if registration {
		out = append(out, "", "Tip: remember your password for future logins!")
	}
	return lines(out...)
}

func wrongPasswordMessage(attempts, limit int) string {
	out := []string{
		"Wrong password!",
		"Attempts: " + strconv.Itoa(attempts) + "/" + strconv.Itoa(limit),
	}
	remaining := limit - attempts
	if remaining <= 2 {
		out = append(out, "Careful! Only "+strconv.Itoa(max(remaining, 0))+" attempt(s) left!")
	}
	if remaining > 0 {
		out = append(out, "Try again: "+LoginUsage)
	}
	return lines(out...)
}

func logoutMessage(name string) string {
	return lines(
		"Logged out successfully!",
		"",
		"See you, "+name+"!",
		"To play again, log in:",
		LoginUsage,
		"",
		"You cannot move until you log in again.",
	)
}

func quickReminder(registered bool) string {
	if registered {
		return "You need to log in! Use: " + LoginUsage
	}
	return "You need to register! Use: " + RegisterUsage
}

func instructions(registered bool) []string {
	if registered {
		return []string{"Type: " + LoginUsage}
	}
	return []string{"Type: " + RegisterUsage, "Choose a secure password!"}
}

func reminderMessage(stage session.Stage, remaining time.Duration, registered bool) string {
	left := session.FormatRemaining(remaining)
	switch stage {
	case session.StageNudge:
		usage := RegisterUsage
		if registered {
			usage = LoginUsage
		}
		return lines("Reminder: you have not logged in yet!", "Use: "+usage)
	case session.StageRemaining:
		return lines(append([]string{"You have " + left + " to log in!"}, instructions(registered)...)...)
	case session.StageAttention:
		if registered {
			return lines("ATTENTION: only "+left+" left!", "Forgot your password? Contact an administrator.")
		}
		return "ATTENTION: only " + left + " left!"
	case session.StageUrgent:
		return lines("URGENT: "+left+" to log in!", "You will be disconnected soon!")
	default:
		return lines(append([]string{
			"FINAL WARNING: " + left + " left!",
			"Log in NOW or you will be disconnected!",
		}, instructions(registered)...)...)
	}
}

func timeoutReason(timeout time.Duration) string {
	secs := strconv.FormatInt(int64(timeout/time.Second), 10)
	return "Login time expired! You had " + secs + " seconds to log in. Reconnect and log in faster."
}

func lockoutReason(limit int) string {
	return "Too many failed login attempts! You exceeded the limit of " + strconv.Itoa(limit) +
		" attempts. Wait a few minutes before trying again."
}

// PlayerMessage renders a gate error as text for the player.
func PlayerMessage(err error) string {
	const fallback = "Something went wrong. Try again."
	if err == nil {
		return fallback
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return fallback
	}
	ctx := oopsErr.Context()

	switch oopsErr.Code() {
	case CodeAlreadyLoggedIn:
		return "You are already logged in!"
	case CodeNotLoggedIn:
		return "You need to be logged in to change your password! Use " + LoginUsage + "."
	case CodeNotRegistered:
		return "You are not registered! Use " + RegisterUsage + " to register."
	case auth.CodeAlreadyRegistered:
		return "You are already registered! Use " + LoginUsage + " to log in."
	case CodeAttemptsExceeded:
		return "You exceeded the login attempt limit!"
	case CodeWrongPassword:
		attempts, _ := ctx["attempts"].(int)
		limit, _ := ctx["max_attempts"].(int)
		return wrongPasswordMessage(attempts, limit)
	case CodeWrongCurrentPassword:
		return "Current password incorrect!"
	case CodeSamePassword:
		return "The new password must be different from the current password!"
	case auth.CodeInvalidPassword:
		subject := "The password"
		if field, ok := ctx["field"].(string); ok && field == "new" {
			subject = "The new password"
		}
		return subject + " must be " + strconv.Itoa(auth.MinPasswordLength) + " to " +
			strconv.Itoa(auth.MaxPasswordLength) + " characters long with no spaces!"
	case auth.CodeInvalidUsername:
		return "Your name cannot be used for an account."
	default:
		return fallback
	}
}
