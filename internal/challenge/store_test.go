package challenge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildingpro/sentinel/internal/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, TextRenderer{}, 5*time.Minute), mr
}

func storedAnswer(t *testing.T, mr *miniredis.Miniredis, id string) string {
	t.Helper()

	answer, err := mr.Get(keyPrefix + id)
	require.NoError(t, err)
	return answer
}

func TestStore_IssueAndVerify(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ch, err := store.Issue(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, ch.ID)
	require.NotEmpty(t, ch.Prompt)

	answer := storedAnswer(t, mr, ch.ID)
	assert.NoError(t, store.Verify(ctx, ch.ID, answer))
}

func TestStore_VerifyIsCaseInsensitive(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ch, err := store.Issue(ctx)
	require.NoError(t, err)

	answer := storedAnswer(t, mr, ch.ID)
	assert.NoError(t, store.Verify(ctx, ch.ID, "  "+strings.ToLower(answer)+" "))
}

func TestStore_ChallengeIsSingleUse(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ch, err := store.Issue(ctx)
	require.NoError(t, err)
	answer := storedAnswer(t, mr, ch.ID)

	require.NoError(t, store.Verify(ctx, ch.ID, answer))
	assert.ErrorIs(t, store.Verify(ctx, ch.ID, answer), models.ErrInvalidChallenge)
}

func TestStore_WrongAnswerBurnsChallenge(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ch, err := store.Issue(ctx)
	require.NoError(t, err)
	answer := storedAnswer(t, mr, ch.ID)

	assert.ErrorIs(t, store.Verify(ctx, ch.ID, "WRONG!"), models.ErrInvalidChallenge)
	// Correct answer no longer works either
	assert.ErrorIs(t, store.Verify(ctx, ch.ID, answer), models.ErrInvalidChallenge)
}

func TestStore_UnknownChallengeID(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Verify(context.Background(), "does-not-exist", "anything")
	assert.ErrorIs(t, err, models.ErrInvalidChallenge)
}

func TestStore_ExpiredChallenge(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ch, err := store.Issue(ctx)
	require.NoError(t, err)
	answer := storedAnswer(t, mr, ch.ID)

	mr.FastForward(6 * time.Minute)

	assert.ErrorIs(t, store.Verify(ctx, ch.ID, answer), models.ErrInvalidChallenge)
}
