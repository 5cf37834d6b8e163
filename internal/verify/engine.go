// Package verify drives the entry challenge: a candidate gets one private
// channel, one prompt, and one attempt. Passing grants the verified role,
// anything else tears the channel down and leaves them unverified.
package verify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourname/gatekeeper-bot/internal/domain"
)

const (
	// InactivityTimeout closes a challenge that never received an answer.
	InactivityTimeout = 10 * time.Minute
	// teardownDelay keeps the channel around briefly so the candidate can
	// read the outcome before it disappears.
	teardownDelay = 2 * time.Second
)

// Gateway is the platform surface the engine drives. Channel deletion must be
// idempotent: absence of the channel is not an error.
type Gateway interface {
	IsVerified(ctx context.Context, memberID string) (bool, error)
	CreateChannel(ctx context.Context, m domain.Member) (string, error)
	SendChallenge(ctx context.Context, channelID string, c Challenge) error
	DeleteChannel(ctx context.Context, channelID string) error
	GrantRole(ctx context.Context, memberID string) error
	Evict(ctx context.Context, memberID string) error
}

// Records is the slice of the user store the engine needs for the suspect gate.
type Records interface {
	GetOrCreate(ctx context.Context, m domain.Member) (domain.UserRecord, error)
}

// Result of an answer submission.
type Result int

const (
	// ResultNone means there was no active challenge for the member; a
	// second answer after the first lands here and has no further effect.
	ResultNone Result = iota
	ResultVerified
	ResultRejected
	// ResultFailed means the answer was correct but granting the role hit
	// a platform failure; the candidate stays unverified.
	ResultFailed
)

type session struct {
	id        string
	member    domain.Member
	channelID string
	challenge Challenge
	deadline  time.Time
	// ready flips once the channel exists and the prompt is out; until
	// then the entry only reserves the member's slot.
	ready bool
}

type Engine struct {
	records Records
	gw      Gateway
	log     *zap.Logger

	delay time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

func NewEngine(records Records, gw Gateway, log *zap.Logger) *Engine {
	return &Engine{
		records:  records,
		gw:       gw,
		log:      log,
		delay:    teardownDelay,
		sessions: make(map[string]*session),
	}
}

// Offer opens a challenge for the candidate. It is a silent no-op when the
// candidate is already verified, flagged suspect, or already mid-challenge.
// The returned channel id is empty on a no-op.
func (e *Engine) Offer(ctx context.Context, m domain.Member) (string, error) {
	verified, err := e.gw.IsVerified(ctx, m.ID)
	if err != nil {
		return "", err
	}
	if verified {
		return "", nil
	}

	rec, err := e.records.GetOrCreate(ctx, m)
	if err != nil {
		return "", err
	}
	if rec.Suspect {
		return "", nil
	}

	// reserve the member's slot before touching the platform, so a
	// double-tap cannot open a second channel
	s := &session{id: uuid.NewString(), member: m}
	e.mu.Lock()
	if _, active := e.sessions[m.ID]; active {
		e.mu.Unlock()
		return "", nil
	}
	e.sessions[m.ID] = s
	e.mu.Unlock()

	channelID, err := e.gw.CreateChannel(ctx, m)
	if err != nil {
		e.unreserve(m.ID, s)
		return "", err
	}

	challenge := NewChallenge()
	if err := e.gw.SendChallenge(ctx, channelID, challenge); err != nil {
		e.unreserve(m.ID, s)
		if derr := e.gw.DeleteChannel(ctx, channelID); derr != nil {
			e.log.Warn("challenge channel cleanup failed",
				zap.String("channel", channelID), zap.Error(derr))
		}
		return "", err
	}

	e.mu.Lock()
	s.channelID = channelID
	s.challenge = challenge
	s.deadline = time.Now().Add(InactivityTimeout)
	s.ready = true
	e.mu.Unlock()

	e.log.Info("challenge offered",
		zap.String("session", s.id),
		zap.String("member", m.ID),
		zap.String("channel", channelID))
	return channelID, nil
}

// Submit evaluates the candidate's single attempt. The session is consumed
// before the comparison, so replays and late timeouts find nothing to act on.
// A role grant failure is reported as ResultFailed, not as a wrong answer.
func (e *Engine) Submit(ctx context.Context, memberID, label string) Result {
	e.mu.Lock()
	s, ok := e.sessions[memberID]
	if ok && s.ready {
		delete(e.sessions, memberID)
	} else {
		ok = false
	}
	e.mu.Unlock()
	if !ok {
		return ResultNone
	}

	result := ResultRejected
	if label == s.challenge.CorrectOption().Label {
		if err := e.gw.GrantRole(ctx, memberID); err != nil {
			e.log.Error("role grant failed",
				zap.String("session", s.id),
				zap.String("member", memberID),
				zap.Error(err))
			result = ResultFailed
		} else {
			result = ResultVerified
		}
	} else {
		if err := e.gw.Evict(ctx, memberID); err != nil {
			e.log.Error("evict failed",
				zap.String("session", s.id),
				zap.String("member", memberID),
				zap.Error(err))
		}
	}

	e.teardown(ctx, s, result == ResultVerified)
	return result
}

// ExpireStale closes challenges whose deadline passed without an answer.
// Expiry is a rejection, never a grant.
func (e *Engine) ExpireStale(ctx context.Context, now time.Time) {
	e.mu.Lock()
	var stale []*session
	for id, s := range e.sessions {
		if s.ready && now.After(s.deadline) {
			stale = append(stale, s)
			delete(e.sessions, id)
		}
	}
	e.mu.Unlock()

	for _, s := range stale {
		e.log.Info("challenge expired",
			zap.String("session", s.id),
			zap.String("member", s.member.ID))
		if err := e.gw.DeleteChannel(ctx, s.channelID); err != nil {
			e.log.Warn("expired channel delete failed",
				zap.String("channel", s.channelID), zap.Error(err))
		}
	}
}

// RunExpiryWorker sweeps stale sessions until ctx is cancelled.
func (e *Engine) RunExpiryWorker(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ExpireStale(ctx, time.Now())
		}
	}
}

// unreserve drops a slot reservation after a failed offer, but only if it
// still holds this very session.
func (e *Engine) unreserve(memberID string, s *session) {
	e.mu.Lock()
	if cur, ok := e.sessions[memberID]; ok && cur == s {
		delete(e.sessions, memberID)
	}
	e.mu.Unlock()
}

// SetTeardownDelay overrides the post-answer channel grace period. A zero
// delay tears down inline, which tests rely on.
func (e *Engine) SetTeardownDelay(d time.Duration) { e.delay = d }

// teardown removes the scoped channel after the grace period. The delayed
// path detaches from the request context so an early caller cancellation
// cannot leak the channel.
func (e *Engine) teardown(ctx context.Context, s *session, verified bool) {
	if e.delay == 0 {
		e.deleteChannel(ctx, s, verified)
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		time.Sleep(e.delay)
		e.deleteChannel(bg, s, verified)
	}()
}

func (e *Engine) deleteChannel(ctx context.Context, s *session, verified bool) {
	if err := e.gw.DeleteChannel(ctx, s.channelID); err != nil {
		e.log.Warn("channel delete failed",
			zap.String("channel", s.channelID), zap.Error(err))
	}
	e.log.Info("challenge resolved",
		zap.String("session", s.id),
		zap.String("member", s.member.ID),
		zap.Bool("verified", verified))
}
