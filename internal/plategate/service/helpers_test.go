package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/recognizer"
	"github.com/BrandonDHaskell/plategate/internal/plategate/service"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store/memory"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stepClock returns t0, t0+step, t0+2*step, ...
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func newStepClock(t0 time.Time, step time.Duration) *stepClock {
	return &stepClock{next: t0, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = t
}

var (
	t0     = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	admin  = domain.Caller{IdentityID: "admin-1", Role: domain.RoleAdmin}
	guard  = domain.Caller{IdentityID: "guard-1", Role: domain.RoleSecurity}
	noRead = recognizer.Func(func(context.Context, []byte) (recognizer.Result, error) {
		return recognizer.Result{}, recognizer.ErrNoPlate
	})
)

type fixture struct {
	store    *memory.Store
	clock    *stepClock
	registry *service.VehicleRegistry
	access   *service.AccessService
	log      *service.AccessLog
}

func newFixture(t *testing.T, rec recognizer.PlateRecognizer) fixture {
	t.Helper()
	if rec == nil {
		rec = noRead
	}
	ms := memory.New()
	clock := newStepClock(t0, time.Minute)
	ids := 0
	reg := service.NewVehicleRegistry(ms, silentLogger(),
		service.WithRegistryClock(clock.Now),
		service.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		}),
	)
	acc := service.NewAccessService(reg, ms, rec, nil, service.AccessConfig{
		RecognitionTimeout:  time.Second,
		ConfidenceThreshold: 0.9,
		Clock:               clock.Now,
	}, silentLogger())

	return fixture{
		store:    ms,
		clock:    clock,
		registry: reg,
		access:   acc,
		log:      service.NewAccessLog(ms, 100),
	}
}

func (f fixture) register(t *testing.T, name, occupation string, plates ...string) string {
	t.Helper()
	id, err := f.registry.RegisterIdentity(context.Background(), admin, service.NewIdentity{
		DisplayName: name,
		Occupation:  occupation,
		Plates:      plates,
	})
	require.NoError(t, err)
	return id.ID
}
