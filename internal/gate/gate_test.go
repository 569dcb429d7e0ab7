// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/loginguard/internal/auth"
	"github.com/holomush/loginguard/internal/gate"
	"github.com/holomush/loginguard/internal/handshake"
	"github.com/holomush/loginguard/internal/world"
	"github.com/holomush/loginguard/pkg/errutil"
)

var _ = Describe("Gate", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness(defaultSettings())
	})

	Describe("Join", func() {
		It("moves the session to spawn and greets a new player", func() {
			p, ep := h.connect("alice")

			Expect(p.Position()).To(Equal(spawn))
			Expect(ep.Transcript()).To(ContainSubstring("Welcome to the server, alice!"))
			Expect(ep.Transcript()).To(ContainSubstring("You have 5m to log in"))
			Expect(ep.Transcript()).To(ContainSubstring("At most 5 login attempts"))
			Expect(h.gate.IsAuthenticated(p)).To(BeFalse())
		})

		It("greets a registered player with login instructions", func() {
			h.registered("alice", "pw1234")

			_, ep := h.connect("Alice")

			Expect(ep.Transcript()).To(ContainSubstring("Welcome back, Alice!"))
			Expect(ep.Transcript()).To(ContainSubstring(gate.LoginUsage))
		})

		It("rejects a second session with the same name", func() {
			h.connect("alice")

			dup := world.NewAvatar(world.NewSessionID(), "ALICE", &endpoint{}, start, world.ModeSurvival)
			err := h.gate.Join(h.ctx, dup)

			errutil.AssertErrorCode(GinkgoT(), err, "WORLD_NAME_IN_USE")
		})
	})

	Describe("Register", func() {
		It("registers once per case-folded name (scenario A)", func() {
			p1, ep1 := h.connect("alice")
			Expect(h.gate.Register(h.ctx, p1, "pw1234")).To(Succeed())
			Expect(ep1.Transcript()).To(ContainSubstring("REGISTRATION SUCCESSFUL!"))
			before, ok := h.store.Get("alice")
			Expect(ok).To(BeTrue())
			h.gate.Leave(h.ctx, p1)

			p2, _ := h.connect("Alice")
			err := h.gate.Register(h.ctx, p2, "other")

			errutil.AssertErrorCode(GinkgoT(), err, auth.CodeAlreadyRegistered)
			after, _ := h.store.Get("ALICE")
			Expect(after.PasswordHash).To(Equal(before.PasswordHash))
			Expect(h.store.Stats().Registered).To(Equal(1))
			Expect(gate.PlayerMessage(err)).To(ContainSubstring("already registered"))
		})

		It("authenticates and disarms the timeout", func() {
			p, _ := h.connect("alice")

			Expect(h.gate.Register(h.ctx, p, "pw1234")).To(Succeed())

			Expect(h.gate.IsAuthenticated(p)).To(BeTrue())
			Expect(h.clock.Pending()).To(BeEmpty())
		})

		DescribeTable("rejects passwords outside the policy",
			func(password string) {
				p, _ := h.connect("alice")

				err := h.gate.Register(h.ctx, p, password)

				errutil.AssertErrorCode(GinkgoT(), err, auth.CodeInvalidPassword)
				Expect(h.store.IsRegistered("alice")).To(BeFalse())
				Expect(h.gate.IsAuthenticated(p)).To(BeFalse())
			},
			Entry("too short", "abc"),
			Entry("too long", "abcdefghijklmnopqrstuvwxyz0123456"),
			Entry("with spaces", "pass word"),
		)
	})

	Describe("Login", func() {
		BeforeEach(func() {
			h.registered("alice", "pw1234")
		})

		It("disconnects on the last allowed failure (scenario B)", func() {
			p, ep := h.connect("alice")

			for i := 1; i <= 4; i++ {
				err := h.gate.Login(h.ctx, p, "wrong")
				errutil.AssertErrorCode(GinkgoT(), err, gate.CodeWrongPassword)
				errutil.AssertErrorContext(GinkgoT(), err, "attempts", i)
				Expect(p.Connected()).To(BeTrue())
			}
			Expect(h.gate.Attempts(p)).To(Equal(4))

			err := h.gate.Login(h.ctx, p, "wrong")
			errutil.AssertErrorCode(GinkgoT(), err, gate.CodeWrongPassword)
			Expect(p.Connected()).To(BeFalse())
			Expect(ep.Reasons()).To(ConsistOf(ContainSubstring("exceeded the limit of 5 attempts")))
			Expect(ep.Transcript()).To(ContainSubstring("Attempts: 5/5"))

			err = h.gate.Login(h.ctx, p, "pw1234")
			errutil.AssertErrorCode(GinkgoT(), err, gate.CodeAttemptsExceeded)

			h.gate.Leave(h.ctx, p)
			Expect(h.gate.Stats().Online).To(BeZero())
		})

		It("renders the attempt count and a warning near the limit", func() {
			p, _ := h.connect("alice")

			err := h.gate.Login(h.ctx, p, "wrong")
			Expect(gate.PlayerMessage(err)).To(ContainSubstring("Attempts: 1/5"))
			Expect(gate.PlayerMessage(err)).NotTo(ContainSubstring("Careful"))

			h.gate.Login(h.ctx, p, "wrong") //nolint:errcheck
			err = h.gate.Login(h.ctx, p, "wrong")
			Expect(gate.PlayerMessage(err)).To(ContainSubstring("Careful! Only 2 attempt(s) left!"))
			Expect(gate.PlayerMessage(err)).To(ContainSubstring("Try again"))
		})

		It("rejects unregistered names", func() {
			p, _ := h.connect("bob")

			errutil.AssertErrorCode(GinkgoT(), h.gate.Login(h.ctx, p, "pw1234"), gate.CodeNotRegistered)
			Expect(h.gate.Attempts(p)).To(BeZero())
		})

		It("rejects a second login", func() {
			p, _ := h.connect("alice")
			Expect(h.gate.Login(h.ctx, p, "pw1234")).To(Succeed())

			errutil.AssertErrorCode(GinkgoT(), h.gate.Login(h.ctx, p, "pw1234"), gate.CodeAlreadyLoggedIn)
		})

		It("clears the failure count on success", func() {
			p, ep := h.connect("alice")
			h.gate.Login(h.ctx, p, "wrong") //nolint:errcheck

			Expect(h.gate.Login(h.ctx, p, "pw1234")).To(Succeed())

			Expect(h.gate.Attempts(p)).To(BeZero())
			Expect(ep.Transcript()).To(ContainSubstring("LOGIN SUCCESSFUL!"))
			cred, _ := h.store.Get("alice")
			Expect(cred.LastLogin).To(BeNumerically(">", 0))
		})

		It("restores the saved position", func() {
			saved := world.Position{X: 5, Y: 40, Z: -8, Yaw: 45, Dimension: "nether"}
			Expect(h.store.SavePosition(h.ctx, "alice", saved)).To(Succeed())
			p, _ := h.connect("alice")

			Expect(h.gate.Login(h.ctx, p, "pw1234")).To(Succeed())

			Expect(p.Position()).To(Equal(saved))
		})

		It("falls back to spawn when the saved dimension is gone", func() {
			Expect(h.store.SavePosition(h.ctx, "alice", world.Position{X: 1, Dimension: "the_end"})).To(Succeed())
			p, _ := h.connect("alice")
			p.Teleport(start)

			Expect(h.gate.Login(h.ctx, p, "pw1234")).To(Succeed())

			Expect(p.Position()).To(Equal(spawn))
		})
	})

	Describe("Login timeout", func() {
		It("disconnects after the timeout", func() {
			p, ep := h.connect("alice")

			h.clock.Advance(299 * time.Second)
			Expect(p.Connected()).To(BeTrue())

			h.clock.Advance(time.Second)
			Expect(p.Connected()).To(BeFalse())
			Expect(ep.Reasons()).To(ConsistOf(ContainSubstring("You had 300 seconds to log in")))
		})

		It("never fires after authentication", func() {
			p, _ := h.connect("alice")
			h.clock.Advance(100 * time.Second)
			Expect(h.gate.Register(h.ctx, p, "pw1234")).To(Succeed())

			h.clock.Advance(time.Hour)

			Expect(p.Connected()).To(BeTrue())
		})

		It("re-arms on logout", func() {
			p, ep := h.connect("alice")
			Expect(h.gate.Register(h.ctx, p, "pw1234")).To(Succeed())
			Expect(h.gate.Logout(h.ctx, p)).To(Succeed())
			Expect(ep.Transcript()).To(ContainSubstring("Logged out successfully!"))

			h.clock.Advance(300 * time.Second)

			Expect(p.Connected()).To(BeFalse())
		})

		It("uses a reloaded timeout for new sessions", func() {
			s := defaultSettings()
			s.LoginTimeout = 60 * time.Second
			h.gate.Apply(s)

			p, _ := h.connect("alice")
			h.clock.Advance(60 * time.Second)

			Expect(p.Connected()).To(BeFalse())
		})
	})

	Describe("Reminders", func() {
		It("escalates while the session stays unauthenticated", func() {
			h.registered("alice", "pw1234")
			_, ep := h.connect("alice")

			h.clock.Advance(30 * time.Second)
			Expect(ep.Transcript()).To(ContainSubstring("Reminder: you have not logged in yet!"))

			h.clock.Advance(30 * time.Second)
			Expect(ep.Transcript()).To(ContainSubstring("You have 4m to log in!"))

			h.clock.Advance(60 * time.Second)
			Expect(ep.Transcript()).To(ContainSubstring("ATTENTION: only 3m left!"))
			Expect(ep.Transcript()).To(ContainSubstring("Forgot your password?"))

			h.clock.Advance(60 * time.Second)
			Expect(ep.Transcript()).To(ContainSubstring("URGENT: 2m to log in!"))

			h.clock.Advance(60 * time.Second)
			Expect(ep.Transcript()).To(ContainSubstring("FINAL WARNING: 1m left!"))
		})

		It("stops after login", func() {
			h.registered("alice", "pw1234")
			p, ep := h.connect("alice")
			Expect(h.gate.Login(h.ctx, p, "pw1234")).To(Succeed())
			sent := len(ep.Messages())

			h.clock.Advance(5 * time.Minute)

			Expect(ep.Messages()).To(HaveLen(sent))
		})
	})

	Describe("Handshake", func() {
		BeforeEach(func() {
			h.registered("alice", "pw1234")
		})

		It("logs in a registered player with a fresh signature (scenario C)", func() {
			saved := world.Position{X: 12, Y: 80, Z: 3, Dimension: "nether"}
			Expect(h.store.SavePosition(h.ctx, "alice", saved)).To(Succeed())
			p, _ := h.connect("alice")

			msg := handshake.NewMessage("alice", "s3cret", h.clock.Now().Add(-30*time.Second))
			Expect(h.gate.Handshake(h.ctx, p, msg)).To(Succeed())

			Expect(h.gate.IsAuthenticated(p)).To(BeTrue())
			Expect(p.Position()).To(Equal(saved))
			Expect(h.clock.Pending()).To(BeEmpty())
		})

		It("rejects stale timestamps silently", func() {
			p, ep := h.connect("alice")
			sent := len(ep.Messages())

			msg := handshake.NewMessage("alice", "s3cret", h.clock.Now().Add(-61*time.Second))
			err := h.gate.Handshake(h.ctx, p, msg)

			errutil.AssertErrorCode(GinkgoT(), err, handshake.CodeStale)
			Expect(h.gate.IsAuthenticated(p)).To(BeFalse())
			Expect(ep.Messages()).To(HaveLen(sent))
		})

		It("rejects everything when the secret is empty", func() {
			s := defaultSettings()
			s.SharedSecret = ""
			h.gate.Apply(s)
			p, _ := h.connect("alice")

			err := h.gate.Handshake(h.ctx, p, handshake.NewMessage("alice", "", h.clock.Now()))

			errutil.AssertErrorCode(GinkgoT(), err, handshake.CodeNoSecret)
		})

		It("rejects when bypass is disabled", func() {
			s := defaultSettings()
			s.AllowBypass = false
			h.gate.Apply(s)
			p, _ := h.connect("alice")

			err := h.gate.Handshake(h.ctx, p, handshake.NewMessage("alice", "s3cret", h.clock.Now()))

			errutil.AssertErrorCode(GinkgoT(), err, handshake.CodeDisabled)
		})

		It("rejects an authenticated session", func() {
			p, _ := h.connect("alice")
			Expect(h.gate.Login(h.ctx, p, "pw1234")).To(Succeed())

			err := h.gate.Handshake(h.ctx, p, handshake.NewMessage("alice", "s3cret", h.clock.Now()))

			errutil.AssertErrorCode(GinkgoT(), err, gate.CodeHandshakeAuthenticated)
		})

		It("rejects unregistered names silently", func() {
			p, ep := h.connect("mallory")
			sent := len(ep.Messages())

			err := h.gate.Handshake(h.ctx, p, handshake.NewMessage("mallory", "s3cret", h.clock.Now()))

			errutil.AssertErrorCode(GinkgoT(), err, gate.CodeHandshakeUnknownUser)
			Expect(ep.Messages()).To(HaveLen(sent))
		})
	})

	Describe("Restriction", func() {
		It("teleports a moving session back on the same tick (scenario D)", func() {
			p, _ := h.connect("alice")
			h.gate.Tick(h.ctx)

			moved := p.Position()
			moved.X += 5
			moved.Yaw = 90
			p.Teleport(moved)
			h.gate.Tick(h.ctx)

			got := p.Position()
			Expect(got.X).To(Equal(spawn.X))
			Expect(got.Z).To(Equal(spawn.Z))
			Expect(got.Yaw).To(Equal(float32(90)))
		})

		It("restores the captured mode on authentication", func() {
			p, _ := h.connectAs("alice", world.ModeCreative)
			h.gate.Tick(h.ctx)
			Expect(p.Mode()).To(Equal(world.ModeObserver))

			Expect(h.gate.Register(h.ctx, p, "pw1234")).To(Succeed())

			Expect(p.Mode()).To(Equal(world.ModeCreative))
			_, frozen := h.gate.Enforcer().Snapshot(p.SessionID())
			Expect(frozen).To(BeFalse())
		})

		It("sends the quick reminder on the first tick", func() {
			_, ep := h.connect("alice")

			h.gate.Tick(h.ctx)

			Expect(ep.Transcript()).To(ContainSubstring("You need to register! Use: " + gate.RegisterUsage))
		})

		It("leaves authenticated sessions alone", func() {
			p, _ := h.connect("alice")
			Expect(h.gate.Register(h.ctx, p, "pw1234")).To(Succeed())
			p.Teleport(start)

			h.gate.Tick(h.ctx)

			Expect(p.Position()).To(Equal(start))
			Expect(p.Mode()).To(Equal(world.ModeSurvival))
		})
	})

	Describe("ChangePassword", func() {
		var (
			p  *world.Avatar
			ep *endpoint
		)

		BeforeEach(func() {
			p, ep = h.connect("alice")
			Expect(h.gate.Register(h.ctx, p, "pw1234")).To(Succeed())
		})

		It("changes the password", func() {
			Expect(h.gate.ChangePassword(h.ctx, p, "pw1234", "newpass")).To(Succeed())

			Expect(ep.Transcript()).To(ContainSubstring(gate.PasswordChangedMessage))
			Expect(h.store.Authenticate(h.ctx, "alice", "newpass")).To(Succeed())
		})

		It("checks the current password", func() {
			err := h.gate.ChangePassword(h.ctx, p, "nope", "newpass")

			errutil.AssertErrorCode(GinkgoT(), err, gate.CodeWrongCurrentPassword)
			Expect(h.store.Authenticate(h.ctx, "alice", "pw1234")).To(Succeed())
		})

		It("rejects an unchanged password", func() {
			errutil.AssertErrorCode(GinkgoT(), h.gate.ChangePassword(h.ctx, p, "pw1234", "pw1234"), gate.CodeSamePassword)
		})

		It("validates the new password", func() {
			err := h.gate.ChangePassword(h.ctx, p, "pw1234", "ab")

			errutil.AssertErrorCode(GinkgoT(), err, auth.CodeInvalidPassword)
			Expect(gate.PlayerMessage(err)).To(HavePrefix("The new password"))
		})

		It("requires a logged-in session", func() {
			Expect(h.gate.Logout(h.ctx, p)).To(Succeed())

			errutil.AssertErrorCode(GinkgoT(), h.gate.ChangePassword(h.ctx, p, "pw1234", "newpass"), gate.CodeNotLoggedIn)
		})

		It("requires a registered name", func() {
			other, _ := h.connect("bob")

			errutil.AssertErrorCode(GinkgoT(), h.gate.ChangePassword(h.ctx, other, "a", "bcde"), gate.CodeNotRegistered)
		})
	})

	Describe("ForceLogin", func() {
		It("logs in an online registered player", func() {
			h.registered("alice", "pw1234")
			p, ep := h.connect("alice")

			Expect(h.gate.ForceLogin(h.ctx, "ALICE")).To(Succeed())

			Expect(h.gate.IsAuthenticated(p)).To(BeTrue())
			Expect(ep.Transcript()).To(ContainSubstring(gate.ForceLoginNotice))
			Expect(h.clock.Pending()).To(BeEmpty())
		})

		It("fails for offline players", func() {
			h.registered("alice", "pw1234")

			errutil.AssertErrorCode(GinkgoT(), h.gate.ForceLogin(h.ctx, "alice"), gate.CodeNotOnline)
		})

		It("fails for unregistered players", func() {
			h.connect("bob")

			errutil.AssertErrorCode(GinkgoT(), h.gate.ForceLogin(h.ctx, "bob"), gate.CodeNotRegistered)
		})

		It("fails for logged-in players", func() {
			h.registered("alice", "pw1234")
			p, _ := h.connect("alice")
			Expect(h.gate.Login(h.ctx, p, "pw1234")).To(Succeed())

			errutil.AssertErrorCode(GinkgoT(), h.gate.ForceLogin(h.ctx, "alice"), gate.CodeAlreadyLoggedIn)
		})
	})

	Describe("Leave", func() {
		It("saves the position of an authenticated session", func() {
			p, _ := h.connect("alice")
			Expect(h.gate.Register(h.ctx, p, "pw1234")).To(Succeed())
			here := world.Position{X: 7, Y: 65, Z: 7, Dimension: world.DefaultDimension}
			p.Teleport(here)

			h.gate.Leave(h.ctx, p)

			saved, ok := h.store.Position("alice")
			Expect(ok).To(BeTrue())
			Expect(saved).To(Equal(here))
			Expect(h.gate.IsAuthenticated(p)).To(BeFalse())
		})

		It("cancels timers of an unauthenticated session", func() {
			p, ep := h.connect("alice")
			h.gate.Leave(h.ctx, p)

			Expect(h.clock.Pending()).To(BeEmpty())
			h.clock.Advance(time.Hour)
			Expect(ep.Reasons()).To(BeEmpty())
		})
	})

	Describe("Shutdown", func() {
		It("saves positions, flushes and clears authentication", func() {
			p, _ := h.connect("alice")
			Expect(h.gate.Register(h.ctx, p, "pw1234")).To(Succeed())
			h.connect("bob")
			here := world.Position{X: -3, Y: 60, Z: 9, Dimension: world.DefaultDimension}
			p.Teleport(here)

			Expect(h.gate.Shutdown(h.ctx)).To(Succeed())

			Expect(h.clock.Pending()).To(BeEmpty())
			Expect(h.gate.IsAuthenticated(p)).To(BeFalse())
			saved, _ := h.store.Position("alice")
			Expect(saved).To(Equal(here))

			reloaded, err := auth.NewStore(h.store.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Load(h.ctx)).To(Equal(1))
		})
	})

	Describe("Stats", func() {
		It("counts registered, online and authenticated sessions", func() {
			h.registered("carol", "pw1234")
			p, _ := h.connect("alice")
			h.connect("bob")
			Expect(h.gate.Register(h.ctx, p, "pw1234")).To(Succeed())

			Expect(h.gate.Stats()).To(Equal(gate.Stats{Registered: 2, Online: 2, Authenticated: 1}))
		})
	})
})
