// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/loginguard/internal/gate"
	"github.com/holomush/loginguard/internal/handshake"
	"github.com/holomush/loginguard/internal/world"
	"github.com/holomush/loginguard/pkg/errutil"
)

// pausingPlayer blocks inside the next call of a chosen method until
// resumed, so a test can run another gate operation in that window.
type pausingPlayer struct {
	*world.Avatar

	mu      sync.Mutex
	method  string
	entered chan struct{}
	resume  chan struct{}
}

func newPausingPlayer(name string, ep world.Endpoint) *pausingPlayer {
	return &pausingPlayer{Avatar: world.NewAvatar(world.NewSessionID(), name, ep, start, world.ModeSurvival)}
}

// pauseOn arms a one-shot pause on method.
func (p *pausingPlayer) pauseOn(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.method = method
	p.entered = make(chan struct{})
	p.resume = make(chan struct{})
}

func (p *pausingPlayer) maybePause(method string) {
	p.mu.Lock()
	if p.method != method {
		p.mu.Unlock()
		return
	}
	p.method = ""
	entered, resume := p.entered, p.resume
	p.mu.Unlock()

	close(entered)
	<-resume
}

func (p *pausingPlayer) Mode() world.Mode {
	p.maybePause("Mode")
	return p.Avatar.Mode()
}

func (p *pausingPlayer) Disconnect(reason string) {
	p.maybePause("Disconnect")
	p.Avatar.Disconnect(reason)
}

// runPaused starts first, waits until it is paused, starts second, gives it
// time to reach the gate, then resumes first and waits for both.
func runPaused(p *pausingPlayer, first, second func()) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer GinkgoRecover()
		first()
	}()
	Eventually(p.entered).Should(BeClosed())

	go func() {
		defer wg.Done()
		defer GinkgoRecover()
		second()
	}()
	time.Sleep(20 * time.Millisecond)
	close(p.resume)
	wg.Wait()
}

var _ = Describe("Gate interleavings", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness(defaultSettings())
		h.registered("alice", "pw1234")
	})

	join := func() (*pausingPlayer, *endpoint) {
		ep := &endpoint{}
		p := newPausingPlayer("alice", ep)
		Expect(h.gate.Join(h.ctx, p)).To(Succeed())
		return p, ep
	}

	DescribeTable("a tick racing a login leaves the session released",
		func(login func(p *pausingPlayer) error) {
			p, _ := join()
			h.gate.Tick(h.ctx)
			Expect(p.Avatar.Mode()).To(Equal(world.ModeObserver))

			var err error
			p.pauseOn("Mode")
			runPaused(p,
				func() { h.gate.Tick(h.ctx) },
				func() { err = login(p) },
			)
			Expect(err).NotTo(HaveOccurred())

			for range 5 {
				h.gate.Tick(h.ctx)
			}

			Expect(h.gate.IsAuthenticated(p)).To(BeTrue())
			Expect(p.Avatar.Mode()).To(Equal(world.ModeSurvival))
			_, frozen := h.gate.Enforcer().Snapshot(p.SessionID())
			Expect(frozen).To(BeFalse())

			moved := world.Position{X: 40, Y: 70, Z: 40, Dimension: world.DefaultDimension}
			p.Teleport(moved)
			h.gate.Tick(h.ctx)
			Expect(p.Position()).To(Equal(moved))
		},
		Entry("password login", func(p *pausingPlayer) error {
			return h.gate.Login(h.ctx, p, "pw1234")
		}),
		Entry("handshake", func(p *pausingPlayer) error {
			return h.gate.Handshake(h.ctx, p, handshake.NewMessage("alice", "s3cret", h.clock.Now()))
		}),
		Entry("force login", func(*pausingPlayer) error {
			return h.gate.ForceLogin(h.ctx, "alice")
		}),
	)

	It("does not let a login slip in while the timeout disconnects", func() {
		p, ep := join()

		var err error
		p.pauseOn("Disconnect")
		runPaused(p,
			func() { h.clock.Advance(300 * time.Second) },
			func() { err = h.gate.Login(h.ctx, p, "pw1234") },
		)

		errutil.AssertErrorCode(GinkgoT(), err, gate.CodeNotOnline)
		Expect(h.gate.IsAuthenticated(p)).To(BeFalse())
		Expect(p.Connected()).To(BeFalse())
		Expect(ep.Transcript()).NotTo(ContainSubstring("LOGIN SUCCESSFUL"))
		Expect(ep.Reasons()).To(ConsistOf(ContainSubstring("You had 300 seconds to log in")))
	})

	It("keeps a session connected when its timer fires after login", func() {
		p, _ := join()

		Expect(h.gate.Login(h.ctx, p, "pw1234")).To(Succeed())
		h.gate.Expire(h.ctx, p)

		Expect(p.Connected()).To(BeTrue())
	})

	It("ignores a timer that fires after the session left", func() {
		p, ep := join()
		Expect(h.gate.TrackedSessions()).To(Equal(1))

		h.gate.Leave(h.ctx, p)
		h.gate.Expire(h.ctx, p)

		Expect(h.gate.TrackedSessions()).To(BeZero())
		Expect(ep.Reasons()).To(BeEmpty())
		Expect(p.Connected()).To(BeTrue())
	})
})
