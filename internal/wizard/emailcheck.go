package wizard

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/terra-clan/apply-wizard/internal/models"
)

const (
	EmailTakenMessage      = "Email already exists, try another."
	EmailUnverifiedMessage = "Unable to verify email right now"
	DefaultEmailCheckDelay = 800 * time.Millisecond
	// DefaultSharedCheckTimeout bounds one shared uniqueness lookup
	DefaultSharedCheckTimeout = 10 * time.Second
	emailFieldPath            = "personalInfo.email"
)

// EmailChecker answers whether an email address is still unused
type EmailChecker interface {
	IsEmailAvailable(ctx context.Context, email string) (bool, error)
}

// SimulatedEmailChecker stands in for a uniqueness lookup: it waits a fixed
// delay and rejects any address containing "test".
type SimulatedEmailChecker struct {
	Delay time.Duration
}

// IsEmailAvailable implements EmailChecker
func (c SimulatedEmailChecker) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	if c.Delay > 0 {
		timer := time.NewTimer(c.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return !strings.Contains(strings.ToLower(email), "test"), nil
}

// SharedEmailChecker collapses concurrent lookups of the same address into one.
// The shared lookup runs detached from the caller that started it, bounded by
// Timeout, so a caller giving up never fails the others waiting on it.
type SharedEmailChecker struct {
	Timeout time.Duration

	inner EmailChecker
	group singleflight.Group
}

// NewSharedEmailChecker wraps inner
func NewSharedEmailChecker(inner EmailChecker) *SharedEmailChecker {
	return &SharedEmailChecker{inner: inner, Timeout: DefaultSharedCheckTimeout}
}

// IsEmailAvailable implements EmailChecker
func (c *SharedEmailChecker) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultSharedCheckTimeout
	}

	results := c.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return c.inner.IsEmailAvailable(callCtx, email)
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

type emailResult struct {
	email     string
	available bool
}

// SequencedEmailCheck runs uniqueness checks for one wizard and keeps only
// the answer of the most recently started check. An answer that arrives
// after a newer check was started is reported as stale and dropped.
type SequencedEmailCheck struct {
	checker EmailChecker

	mu   sync.Mutex
	seq  uint64
	last *emailResult
}

// NewSequencedEmailCheck creates a per-wizard check tracker
func NewSequencedEmailCheck(checker EmailChecker) *SequencedEmailCheck {
	return &SequencedEmailCheck{checker: checker}
}

// Check starts a new check for email and waits for its answer
func (s *SequencedEmailCheck) Check(ctx context.Context, email string) (models.EmailCheckResponse, error) {
	s.mu.Lock()
	s.seq++
	mine := s.seq
	s.mu.Unlock()

	available, err := s.checker.IsEmailAvailable(ctx, email)

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := models.EmailCheckResponse{Email: email, Sequence: mine}
	if mine != s.seq {
		resp.Stale = true
		return resp, nil
	}
	if err != nil {
		resp.Message = EmailUnverifiedMessage
		return resp, err
	}

	resp.Available = available
	if !available {
		resp.Message = EmailTakenMessage
	}
	s.last = &emailResult{email: email, available: available}
	return resp, nil
}

// Verify returns the recorded answer for email, running a fresh check when
// the latest recorded answer belongs to a different address.
func (s *SequencedEmailCheck) Verify(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	if s.last != nil && s.last.email == email {
		available := s.last.available
		s.mu.Unlock()
		return available, nil
	}
	s.mu.Unlock()

	resp, err := s.Check(ctx, email)
	if err != nil {
		return false, err
	}
	if resp.Stale {
		// a newer check raced us; retry against whatever it recorded
		return s.Verify(ctx, email)
	}
	return resp.Available, nil
}

// Forget drops the recorded answer, e.g. after the form was reset
func (s *SequencedEmailCheck) Forget() {
	s.mu.Lock()
	s.seq++
	s.last = nil
	s.mu.Unlock()
}
