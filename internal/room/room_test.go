package room

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/concerto-app/theatre/internal/catalog"
	"github.com/concerto-app/theatre/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testCatalog(t *testing.T, ids ...string) *catalog.Catalog {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"grinning-face", "smiling-face", "winking-face", "crying-face"}
	}
	f, err := os.CreateTemp(t.TempDir(), "entries-*.txt")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(strings.Join(ids, "\n") + "\n")
	require.NoError(t, err)
	cat, err := catalog.Load(f.Name())
	require.NoError(t, err)
	return cat
}

func testCode() model.Code {
	return model.Code{Entries: []model.CodeEntry{{Emoji: model.Emoji{ID: "a"}}, {Emoji: model.Emoji{ID: "b"}}}}
}

func drain(ctx context.Context, ch <-chan model.Envelope) []model.Envelope {
	var out []model.Envelope
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, env)
		case <-ctx.Done():
			return out
		}
	}
}

func TestConnectFirstUserHasNoOthers(t *testing.T) {
	r := New(testCode(), testCatalog(t), nil)
	user, others, err := r.Connect()
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEmpty(t, user.Avatar.Emoji.ID)
	assert.Empty(t, others)
}

func TestConnectSecondUserSeesFirstAndGetsNotified(t *testing.T) {
	r := New(testCode(), testCatalog(t), nil)
	first, _, err := r.Connect()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	feed, err := r.Fetch(ctx, first.ID)
	require.NoError(t, err)

	second, others, err := r.Connect()
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, first.ID, others[0].ID)

	envs := drain(ctx, feed)
	require.Len(t, envs, 1)
	connected, ok := envs[0].(model.Connected)
	require.True(t, ok)
	assert.Equal(t, second.ID, connected.User.ID)
}

func TestConnectNeverAssignsDuplicateAvatars(t *testing.T) {
	r := New(testCode(), testCatalog(t, "a", "b", "c"), nil)
	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		user, _, err := r.Connect()
		require.NoError(t, err)
		assert.False(t, seen[user.Avatar.Emoji.ID], "avatar reused: %s", user.Avatar.Emoji.ID)
		seen[user.Avatar.Emoji.ID] = true
	}
	_, _, err := r.Connect()
	assert.ErrorIs(t, err, ErrNotEnoughResources)
}

func TestDisconnectUnknownUserIsNoop(t *testing.T) {
	r := New(testCode(), testCatalog(t), nil)
	r.Disconnect("does-not-exist")
}

func TestDisconnectBroadcastsAndFiresOnEmpty(t *testing.T) {
	var emptied sync.WaitGroup
	emptied.Add(1)
	r := New(testCode(), testCatalog(t), emptied.Done)

	first, _, err := r.Connect()
	require.NoError(t, err)
	second, _, err := r.Connect()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	feed, err := r.Fetch(ctx, first.ID)
	require.NoError(t, err)

	r.Disconnect(second.ID)
	envs := drain(ctx, feed)
	// first's queue already holds the Connected notice for second.
	require.Len(t, envs, 2)
	connected, ok := envs[0].(model.Connected)
	require.True(t, ok)
	assert.Equal(t, second.ID, connected.User.ID)
	disconnected, ok := envs[1].(model.Disconnected)
	require.True(t, ok)
	assert.Equal(t, second.ID, disconnected.User)

	r.Disconnect(first.ID)

	done := make(chan struct{})
	go func() {
		emptied.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onEmpty was not called")
	}
}

func TestFetchEndsWhenRoomCloses(t *testing.T) {
	r := New(testCode(), testCatalog(t), nil)
	user, _, err := r.Connect()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	feed, err := r.Fetch(ctx, user.ID)
	require.NoError(t, err)

	r.Close()

	_, ok := <-feed
	assert.False(t, ok)
}

func TestFetchUnknownUserFails(t *testing.T) {
	r := New(testCode(), testCatalog(t), nil)
	_, err := r.Fetch(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestMakeOfferAndAnswerRelayToRecipientOnly(t *testing.T) {
	r := New(testCode(), testCatalog(t), nil)
	caller, _, err := r.Connect()
	require.NoError(t, err)
	callee, _, err := r.Connect()
	require.NoError(t, err)
	bystander, _, err := r.Connect()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	calleeFeed, err := r.Fetch(ctx, callee.ID)
	require.NoError(t, err)
	bystanderFeed, err := r.Fetch(ctx, bystander.ID)
	require.NoError(t, err)

	require.NoError(t, r.MakeOffer(caller.ID, callee.ID, model.Session{Description: "offer-sdp"}))
	require.NoError(t, r.MakeAnswer(callee.ID, caller.ID, model.Session{Description: "answer-sdp"}))

	envs := drain(ctx, calleeFeed)
	// callee's queue already holds the Connected notice for bystander.
	require.Len(t, envs, 2)
	connected, ok := envs[0].(model.Connected)
	require.True(t, ok)
	assert.Equal(t, bystander.ID, connected.User.ID)
	offer, ok := envs[1].(model.Offer)
	require.True(t, ok)
	assert.Equal(t, caller.ID, offer.FromUser)
	assert.Equal(t, "offer-sdp", offer.Session.Description)

	r.Close()
	assert.Empty(t, drain(ctx, bystanderFeed))
}

func TestMakeOfferUnknownParticipantFails(t *testing.T) {
	r := New(testCode(), testCatalog(t), nil)
	user, _, err := r.Connect()
	require.NoError(t, err)

	err = r.MakeOffer(user.ID, "nobody", model.Session{Description: "x"})
	assert.ErrorIs(t, err, ErrUnknownUser)

	err = r.MakeOffer("nobody", user.ID, model.Session{Description: "x"})
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestIsEmpty(t *testing.T) {
	r := New(testCode(), testCatalog(t), nil)
	assert.True(t, r.IsEmpty())
	user, _, err := r.Connect()
	require.NoError(t, err)
	assert.False(t, r.IsEmpty())
	r.Disconnect(user.ID)
	assert.True(t, r.IsEmpty())
}

func TestConcurrentConnectsNeverDuplicateAvatarsOrIDs(t *testing.T) {
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		ids = append(ids, string(rune('a'+i%26))+string(rune('0'+i/26)))
	}
	r := New(testCode(), testCatalog(t, ids...), nil)

	var wg sync.WaitGroup
	results := make(chan model.User, len(ids))
	for i := 0; i < len(ids); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, _, err := r.Connect()
			if err == nil {
				results <- user
			}
		}()
	}
	wg.Wait()
	close(results)

	seenAvatars := make(map[string]bool)
	seenIDs := make(map[string]bool)
	for user := range results {
		assert.False(t, seenAvatars[user.Avatar.Emoji.ID], "duplicate avatar")
		assert.False(t, seenIDs[user.ID], "duplicate user id")
		seenAvatars[user.Avatar.Emoji.ID] = true
		seenIDs[user.ID] = true
	}
}
