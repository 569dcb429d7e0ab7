// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/loginguard/internal/auth"
	"github.com/holomush/loginguard/internal/gate"
	"github.com/holomush/loginguard/internal/schedule"
	"github.com/holomush/loginguard/internal/world"
)

func TestGate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gate Suite")
}

var (
	epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	spawn = world.Position{X: 0, Y: 64, Z: 0, Dimension: world.DefaultDimension}
	start = world.Position{X: 100, Y: 70, Z: 100, Dimension: world.DefaultDimension}
)

// endpoint records everything the gate sends to a player.
type endpoint struct {
	mu      sync.Mutex
	sent    []string
	reasons []string
}

func (e *endpoint) Send(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, text)
	return nil
}

func (e *endpoint) Close(reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reasons = append(e.reasons, reason)
	return nil
}

func (e *endpoint) Messages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sent...)
}

func (e *endpoint) Transcript() string {
	return strings.Join(e.Messages(), "\n")
}

func (e *endpoint) Reasons() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.reasons...)
}

type harness struct {
	ctx   context.Context
	clock *schedule.Manual
	store *auth.Store
	world *world.World
	gate  *gate.Gate
}

func defaultSettings() gate.Settings {
	return gate.Settings{
		LoginTimeout: 300 * time.Second,
		MaxAttempts:  5,
		AllowBypass:  true,
		SharedSecret: "s3cret",
	}
}

func newHarness(settings gate.Settings) *harness {
	store, err := auth.NewStore(filepath.Join(GinkgoT().TempDir(), "users.json"),
		auth.WithWriteRetry(1, time.Millisecond))
	Expect(err).NotTo(HaveOccurred())

	clock := schedule.NewManual(epoch)
	w := world.New(spawn, "nether")
	g, err := gate.New(gate.Deps{
		Store:     store,
		World:     w,
		Scheduler: clock,
		Clock:     clock,
	}, settings)
	Expect(err).NotTo(HaveOccurred())

	return &harness{ctx: context.Background(), clock: clock, store: store, world: w, gate: g}
}

func (h *harness) connect(name string) (*world.Avatar, *endpoint) {
	return h.connectAs(name, world.ModeSurvival)
}

func (h *harness) connectAs(name string, mode world.Mode) (*world.Avatar, *endpoint) {
	ep := &endpoint{}
	p := world.NewAvatar(world.NewSessionID(), name, ep, start, mode)
	Expect(h.gate.Join(h.ctx, p)).To(Succeed())
	return p, ep
}

func (h *harness) registered(name, password string) {
	Expect(h.store.Register(h.ctx, name, password)).To(Succeed())
}
