package verify_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourname/gatekeeper-bot/internal/domain"
	"github.com/yourname/gatekeeper-bot/internal/verify"
)

type mockRecords struct {
	suspect bool
	err     error
}

func (m *mockRecords) GetOrCreate(ctx context.Context, mem domain.Member) (domain.UserRecord, error) {
	if m.err != nil {
		return domain.UserRecord{}, m.err
	}
	return domain.UserRecord{ID: mem.ID, Suspect: m.suspect}, nil
}

type mockGateway struct {
	verified    bool
	verifiedErr error
	createErr   error
	sendErr     error
	grantErr    error

	nextChannel   int
	sentChallenge verify.Challenge

	createdChannels []string
	deletedChannels []string
	granted         []string
	evicted         []string
}

func (g *mockGateway) IsVerified(ctx context.Context, memberID string) (bool, error) {
	return g.verified, g.verifiedErr
}

func (g *mockGateway) CreateChannel(ctx context.Context, m domain.Member) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	g.nextChannel++
	id := fmt.Sprintf("chan-%d", g.nextChannel)
	g.createdChannels = append(g.createdChannels, id)
	return id, nil
}

func (g *mockGateway) SendChallenge(ctx context.Context, channelID string, c verify.Challenge) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sentChallenge = c
	return nil
}

func (g *mockGateway) DeleteChannel(ctx context.Context, channelID string) error {
	g.deletedChannels = append(g.deletedChannels, channelID)
	return nil
}

func (g *mockGateway) GrantRole(ctx context.Context, memberID string) error {
	if g.grantErr != nil {
		return g.grantErr
	}
	g.granted = append(g.granted, memberID)
	return nil
}

func (g *mockGateway) Evict(ctx context.Context, memberID string) error {
	g.evicted = append(g.evicted, memberID)
	return nil
}

func newEngine(records *mockRecords, gw *mockGateway) *verify.Engine {
	e := verify.NewEngine(records, gw, zap.NewNop())
	e.SetTeardownDelay(0)
	return e
}

func member(id string) domain.Member {
	return domain.Member{ID: id, CreatedAt: time.Now().Add(-90 * 24 * time.Hour)}
}

func TestOffer_CreatesChannelAndChallenge(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{}
	e := newEngine(&mockRecords{}, gw)

	channelID, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)
	assert.Equal(t, "chan-1", channelID)
	assert.Len(t, gw.sentChallenge.Options, 6)
	assert.Empty(t, gw.deletedChannels)
}

func TestOffer_NoOpWhenAlreadyVerified(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{verified: true}
	e := newEngine(&mockRecords{}, gw)

	channelID, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)
	assert.Empty(t, channelID)
	assert.Empty(t, gw.createdChannels)
}

func TestOffer_NoOpForSuspect(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{}
	e := newEngine(&mockRecords{suspect: true}, gw)

	channelID, err := e.Offer(ctx, member("m2"))
	require.NoError(t, err)
	assert.Empty(t, channelID)
	assert.Empty(t, gw.createdChannels)
}

func TestOffer_NoOpWhenAlreadyActive(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{}
	e := newEngine(&mockRecords{}, gw)

	first, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, gw.createdChannels, 1)
}

// blockingGateway parks CreateChannel until released, so a test can hold one
// offer mid-flight while poking the engine from another goroutine.
type blockingGateway struct {
	mockGateway
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) CreateChannel(ctx context.Context, m domain.Member) (string, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.mockGateway.CreateChannel(ctx, m)
}

func TestOffer_ConcurrentTapsOpenOneChannel(t *testing.T) {
	ctx := context.Background()
	gw := &blockingGateway{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := verify.NewEngine(&mockRecords{}, gw, zap.NewNop())
	e.SetTeardownDelay(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		channelID, err := e.Offer(ctx, member("m1"))
		assert.NoError(t, err)
		assert.Equal(t, "chan-1", channelID)
	}()
	<-gw.entered

	// a second tap while the first offer is still opening its channel
	// must not open another one
	channelID, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)
	assert.Empty(t, channelID)

	// the half-open challenge takes no answer and never expires early
	assert.Equal(t, verify.ResultNone, e.Submit(ctx, "m1", "🍎"))
	e.ExpireStale(ctx, time.Now().Add(verify.InactivityTimeout+time.Hour))
	assert.Empty(t, gw.deletedChannels)

	close(gw.release)
	<-done

	require.Equal(t, []string{"chan-1"}, gw.createdChannels)
	result := e.Submit(ctx, "m1", gw.sentChallenge.CorrectOption().Label)
	assert.Equal(t, verify.ResultVerified, result)
	assert.Equal(t, []string{"chan-1"}, gw.deletedChannels)
}

func TestOffer_SendFailureTearsDownChannel(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{sendErr: errors.New("network down")}
	e := newEngine(&mockRecords{}, gw)

	_, err := e.Offer(ctx, member("m1"))
	require.Error(t, err)
	assert.Equal(t, []string{"chan-1"}, gw.deletedChannels)

	// the failed offer left no session behind
	gw.sendErr = nil
	channelID, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)
	assert.Equal(t, "chan-2", channelID)
}

func TestSubmit_CorrectLabelGrantsRole(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{}
	e := newEngine(&mockRecords{}, gw)

	_, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)

	correct := gw.sentChallenge.CorrectOption().Label
	result := e.Submit(ctx, "m1", correct)

	assert.Equal(t, verify.ResultVerified, result)
	assert.Equal(t, []string{"m1"}, gw.granted)
	assert.Empty(t, gw.evicted)
	assert.Equal(t, []string{"chan-1"}, gw.deletedChannels)
}

func TestSubmit_WrongLabelEvicts(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{}
	e := newEngine(&mockRecords{}, gw)

	_, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)

	correct := gw.sentChallenge.CorrectOption().Label
	var wrong string
	for _, opt := range gw.sentChallenge.Options {
		if opt.Label != correct {
			wrong = opt.Label
			break
		}
	}

	result := e.Submit(ctx, "m1", wrong)
	assert.Equal(t, verify.ResultRejected, result)
	assert.Empty(t, gw.granted)
	assert.Equal(t, []string{"m1"}, gw.evicted)
	assert.Equal(t, []string{"chan-1"}, gw.deletedChannels)
}

func TestSubmit_SecondAnswerHasNoEffect(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{}
	e := newEngine(&mockRecords{}, gw)

	_, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)

	correct := gw.sentChallenge.CorrectOption().Label
	require.Equal(t, verify.ResultVerified, e.Submit(ctx, "m1", correct))

	assert.Equal(t, verify.ResultNone, e.Submit(ctx, "m1", correct))
	assert.Len(t, gw.granted, 1)
	assert.Len(t, gw.deletedChannels, 1)
}

func TestSubmit_NoSession(t *testing.T) {
	gw := &mockGateway{}
	e := newEngine(&mockRecords{}, gw)

	assert.Equal(t, verify.ResultNone, e.Submit(context.Background(), "ghost", "🍎"))
	assert.Empty(t, gw.granted)
	assert.Empty(t, gw.evicted)
}

func TestSubmit_GrantFailureReportsFailure(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{grantErr: errors.New("platform down")}
	e := newEngine(&mockRecords{}, gw)

	_, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)

	correct := gw.sentChallenge.CorrectOption().Label
	result := e.Submit(ctx, "m1", correct)

	// a failed grant is a platform failure, not a wrong answer
	assert.Equal(t, verify.ResultFailed, result)
	assert.Empty(t, gw.granted)
	assert.Empty(t, gw.evicted)
	// channel still torn down
	assert.Equal(t, []string{"chan-1"}, gw.deletedChannels)
}

func TestExpireStale_TearsDownWithoutGrant(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{}
	e := newEngine(&mockRecords{}, gw)

	_, err := e.Offer(ctx, member("m1"))
	require.NoError(t, err)

	// not yet stale
	e.ExpireStale(ctx, time.Now())
	assert.Empty(t, gw.deletedChannels)

	e.ExpireStale(ctx, time.Now().Add(verify.InactivityTimeout+time.Minute))
	assert.Equal(t, []string{"chan-1"}, gw.deletedChannels)
	assert.Empty(t, gw.granted)

	// answering after expiry finds nothing
	assert.Equal(t, verify.ResultNone, e.Submit(ctx, "m1", gw.sentChallenge.CorrectOption().Label))
}
