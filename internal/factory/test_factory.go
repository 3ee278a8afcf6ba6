package factory

import (
	"context"
	"time"

	"github.com/mcoot/duelsync-go/internal/dependencies/mocks"
	"github.com/mcoot/duelsync-go/internal/storage/memory"
	"github.com/mcoot/duelsync-go/internal/testutil"
)

// TestTickPeriod is the tick period used by test apps
const TestTickPeriod = 50 * time.Millisecond

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// The event loop and directory writer are running; call Shutdown when done.
func NewTestApp(cfg Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	if cfg.Logger == nil {
		cfg.Logger = testutil.NopLogger()
	}
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = TestTickPeriod
	}

	app := newWithDependencies(store, mockClock, mockRandom, cfg)
	app.Start()

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}

// Settle waits until every turn posted before the call has run
func (t *TestApp) Settle(ctx context.Context) error {
	return t.Loop.Call(ctx, func() {})
}

// Advance moves the mock clock forward on the event loop, then waits for the turns it posted
func (t *TestApp) Advance(ctx context.Context, d time.Duration) error {
	if err := t.Loop.Call(ctx, func() { t.MockClock.Advance(d) }); err != nil {
		return err
	}
	return t.Settle(ctx)
}
