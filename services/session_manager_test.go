package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keepitcity/proof/consultation"
	"github.com/Keepitcity/proof/models"
)

func startCall(t *testing.T, f *managerFixture) models.ConsultationSession {
	t.Helper()
	session, err := f.manager.Start(context.Background(), consultation.StartInput{
		UserEmail: "rep@aerialcanvas.com",
		UserName:  "Rep",
		TeamRole:  models.RoleSales,
	})
	require.NoError(t, err)
	return session
}

func TestSessionManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)

	session := startCall(t, f)
	assert.Equal(t, 1, f.manager.Len())
	require.Len(t, session.Messages, 1)

	f.clock.Advance(90 * time.Second)
	reply, snap, err := f.manager.Respond(ctx, session.ID, "Hi, thanks for calling Aerial Canvas.")
	require.NoError(t, err)
	assert.Equal(t, "Okay, what would that cost me?", reply)
	assert.Len(t, snap.Messages, 3)
	assert.InDelta(t, 90, snap.ElapsedSeconds, 0.001)
	assert.False(t, snap.IsComplete)

	f.clock.Advance(30 * time.Second)
	result, snap, err := f.manager.Finish(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 88, result.OverallScore)
	assert.True(t, snap.IsComplete)
	assert.InDelta(t, 120, snap.ElapsedSeconds, 0.001)

	card, err := f.scorecards.GetScorecard(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "rep@aerialcanvas.com", card.UserEmail)
	assert.Equal(t, 1, card.TurnCount)
	require.Len(t, card.Categories, 1)

	_, _, err = f.manager.Finish(ctx, session.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, 1, f.evaluator.callCount())
}

func TestSessionManagerSnapshotsAreCopies(t *testing.T) {
	f := newManagerFixture(t)
	session := startCall(t, f)

	session.Messages[0].Content = "tampered"
	got, err := f.manager.Get(session.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "tampered", got.Messages[0].Content)
}

func TestSessionManagerUnknownSession(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)

	_, err := f.manager.Get("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, _, err = f.manager.Respond(ctx, "missing", "hello")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, _, err = f.manager.Finish(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSessionManagerFinishRetryAfterEvaluatorFailure(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	session := startCall(t, f)

	_, _, err := f.manager.Respond(ctx, session.ID, "Hello!")
	require.NoError(t, err)

	f.evaluator.set("", errors.New("upstream down"))
	_, snap, err := f.manager.Finish(ctx, session.ID)
	assert.ErrorIs(t, err, models.ErrExternalCall)
	assert.True(t, snap.IsComplete)
	assert.Nil(t, snap.Result)

	f.evaluator.set(testEvaluation, nil)
	result, _, err := f.manager.Finish(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", result.Tier)
}

func TestSweepEvaluatesIdleCallsWithTurns(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)

	talked := startCall(t, f)
	silent := startCall(t, f)
	_, _, err := f.manager.Respond(ctx, talked.ID, "Hi there")
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	f.manager.Sweep(ctx)
	assert.Equal(t, 2, f.manager.Len())
	assert.Equal(t, 0, f.evaluator.callCount())

	f.clock.Advance(6 * time.Minute)
	f.manager.Sweep(ctx)
	assert.Equal(t, 1, f.manager.Len())
	_, err = f.manager.Get(silent.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	got, err := f.manager.Get(talked.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1, f.evaluator.callCount())

	card, err := f.scorecards.GetScorecard(ctx, talked.ID)
	require.NoError(t, err)
	assert.NotNil(t, card)

	f.clock.Advance(31 * time.Minute)
	f.manager.Sweep(ctx)
	assert.Equal(t, 0, f.manager.Len())
}

func TestSweepDoesNotRetryFailedEvaluation(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.evaluator.set("not json at all", nil)

	session := startCall(t, f)
	_, _, err := f.manager.Respond(ctx, session.ID, "Hi there")
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	f.manager.Sweep(ctx)
	f.manager.Sweep(ctx)
	assert.Equal(t, 1, f.evaluator.callCount())
	assert.Equal(t, 1, f.manager.Len())

	f.clock.Advance(30 * time.Minute)
	f.manager.Sweep(ctx)
	assert.Equal(t, 1, f.manager.Len())

	f.clock.Advance(11 * time.Minute)
	f.manager.Sweep(ctx)
	assert.Equal(t, 0, f.manager.Len())
}

func TestSessionManagerCloseStopsSweeper(t *testing.T) {
	engine := consultation.NewEngine(nil, &fakePersona{}, &fakeEvaluator{})
	m := NewSessionManager(engine, time.Millisecond)
	m.Close()
	m.Close()
}
