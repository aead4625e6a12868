package wizard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/apply-wizard/internal/models"
)

// gatedChecker blocks every lookup until the test releases it
type gatedChecker struct {
	started chan string
	release map[string]chan bool
}

func newGatedChecker(emails ...string) *gatedChecker {
	g := &gatedChecker{
		started: make(chan string, len(emails)),
		release: make(map[string]chan bool, len(emails)),
	}
	for _, e := range emails {
		g.release[e] = make(chan bool, 1)
	}
	return g
}

func (g *gatedChecker) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	g.started <- email
	select {
	case v := <-g.release[email]:
		return v, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

type countingChecker struct {
	calls atomic.Int32
	err   error
}

func (c *countingChecker) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	c.calls.Add(1)
	if c.err != nil {
		return false, c.err
	}
	return SimulatedEmailChecker{}.IsEmailAvailable(ctx, email)
}

func TestSimulatedEmailChecker(t *testing.T) {
	c := SimulatedEmailChecker{}
	ctx := context.Background()

	ok, err := c.IsEmailAvailable(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsEmailAvailable(ctx, "Tester@Example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSimulatedEmailChecker_HonoursContext(t *testing.T) {
	c := SimulatedEmailChecker{Delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.IsEmailAvailable(ctx, "ada@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSequencedEmailCheck_StaleResultDiscarded(t *testing.T) {
	gate := newGatedChecker("old@example.com", "new@example.com")
	check := NewSequencedEmailCheck(gate)
	ctx := context.Background()

	var wg sync.WaitGroup
	var oldResp models.EmailCheckResponse

	wg.Add(1)
	go func() {
		defer wg.Done()
		oldResp, _ = check.Check(ctx, "old@example.com")
	}()
	require.Equal(t, "old@example.com", <-gate.started)

	wg.Add(1)
	var newResp models.EmailCheckResponse
	go func() {
		defer wg.Done()
		newResp, _ = check.Check(ctx, "new@example.com")
	}()
	require.Equal(t, "new@example.com", <-gate.started)

	// newer check resolves first, the older one arrives late
	gate.release["new@example.com"] <- true
	gate.release["old@example.com"] <- false
	wg.Wait()

	assert.False(t, newResp.Stale)
	assert.True(t, newResp.Available)
	assert.True(t, oldResp.Stale)
	assert.Less(t, oldResp.Sequence, newResp.Sequence)

	// the recorded answer is the newer one and is reused without a lookup
	available, err := check.Verify(ctx, "new@example.com")
	require.NoError(t, err)
	assert.True(t, available)
	assert.Empty(t, gate.started)
}

func TestSequencedEmailCheck_VerifyCachesPerEmail(t *testing.T) {
	counter := &countingChecker{}
	check := NewSequencedEmailCheck(counter)
	ctx := context.Background()

	resp, err := check.Check(ctx, "test@example.com")
	require.NoError(t, err)
	assert.False(t, resp.Available)
	assert.Equal(t, EmailTakenMessage, resp.Message)

	available, err := check.Verify(ctx, "test@example.com")
	require.NoError(t, err)
	assert.False(t, available)
	assert.Equal(t, int32(1), counter.calls.Load())

	available, err = check.Verify(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, available)
	assert.Equal(t, int32(2), counter.calls.Load())

	check.Forget()
	_, err = check.Verify(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, int32(3), counter.calls.Load())
}

func TestSequencedEmailCheck_CheckerError(t *testing.T) {
	check := NewSequencedEmailCheck(&countingChecker{err: errors.New("lookup down")})

	resp, err := check.Check(context.Background(), "ada@example.com")
	assert.Error(t, err)
	assert.Equal(t, EmailUnverifiedMessage, resp.Message)
	assert.False(t, resp.Available)
}

func TestSharedEmailChecker_DelegatesAndLowercasesKey(t *testing.T) {
	counter := &countingChecker{}
	shared := NewSharedEmailChecker(counter)

	ok, err := shared.IsEmailAvailable(context.Background(), "Ada@Example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = shared.IsEmailAvailable(context.Background(), "test@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(2), counter.calls.Load())
}

func TestSharedEmailChecker_CancelledCallerDoesNotFailOthers(t *testing.T) {
	gated := newGatedChecker("ada@example.com")
	shared := NewSharedEmailChecker(gated)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := shared.IsEmailAvailable(ctxA, "ada@example.com")
		errA <- err
	}()
	require.Equal(t, "ada@example.com", <-gated.started)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	type result struct {
		ok  bool
		err error
	}
	resB := make(chan result, 1)
	go func() {
		ok, err := shared.IsEmailAvailable(context.Background(), "ADA@example.com")
		resB <- result{ok, err}
	}()

	// give the second caller time to join the flight still in progress
	time.Sleep(50 * time.Millisecond)
	gated.release["ada@example.com"] <- true
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.True(t, r.ok)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not receive the shared result")
	}
	assert.Empty(t, gated.started)
}
