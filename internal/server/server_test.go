package server_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/concerto-app/theatre/internal/catalog"
	"github.com/concerto-app/theatre/internal/model"
	"github.com/concerto-app/theatre/internal/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "entries-*.txt")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(strings.Join([]string{"a", "b", "c", "d"}, "\n") + "\n")
	require.NoError(t, err)
	cat, err := catalog.Load(f.Name())
	require.NoError(t, err)
	return cat
}

func testCode() model.Code {
	return model.Code{Entries: []model.CodeEntry{{Emoji: model.Emoji{ID: "x"}}, {Emoji: model.Emoji{ID: "y"}}}}
}

func TestGetOrCreateRoomReturnsSameRoomForSameCode(t *testing.T) {
	s := server.New(testCatalog(t), time.Minute)
	code := testCode()

	r1 := s.GetOrCreateRoom(code)
	r2 := s.GetOrCreateRoom(code)
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, s.RoomCount())
}

func TestGetOrCreateRoomDifferentCodesGetDifferentRooms(t *testing.T) {
	s := server.New(testCatalog(t), time.Minute)
	codeA := model.Code{Entries: []model.CodeEntry{{Emoji: model.Emoji{ID: "a"}}}}
	codeB := model.Code{Entries: []model.CodeEntry{{Emoji: model.Emoji{ID: "b"}}}}

	r1 := s.GetOrCreateRoom(codeA)
	r2 := s.GetOrCreateRoom(codeB)
	assert.NotSame(t, r1, r2)
	assert.Equal(t, 2, s.RoomCount())
}

func TestEmptyRoomIsReapedImmediatelyOnDisconnect(t *testing.T) {
	s := server.New(testCatalog(t), time.Minute)
	code := testCode()

	r := s.GetOrCreateRoom(code)
	user, _, err := r.Connect()
	require.NoError(t, err)
	r.Disconnect(user.ID)

	// onEmpty runs in its own goroutine; the one-minute idle timer cannot
	// be what removes the room within this window.
	require.Eventually(t, func() bool {
		return s.RoomCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestZeroGraceReapsImmediately(t *testing.T) {
	s := server.New(testCatalog(t), 0)
	code := testCode()

	r := s.GetOrCreateRoom(code)
	user, _, err := r.Connect()
	require.NoError(t, err)
	r.Disconnect(user.ID)

	require.Eventually(t, func() bool {
		return s.RoomCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRoomWithNoSuccessfulConnectIsReapedByIdleTimer(t *testing.T) {
	s := server.New(testCatalog(t), 20*time.Millisecond)
	s.GetOrCreateRoom(testCode())

	require.Eventually(t, func() bool {
		return s.RoomCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestShutdownClosesAllRoomsAndClearsRegistry(t *testing.T) {
	s := server.New(testCatalog(t), time.Minute)
	code := testCode()
	r := s.GetOrCreateRoom(code)
	_, _, err := r.Connect()
	require.NoError(t, err)

	s.Shutdown()
	assert.Equal(t, 0, s.RoomCount())
}

func TestRoomLookupMissReturnsFalse(t *testing.T) {
	s := server.New(testCatalog(t), time.Minute)
	_, ok := s.Room(testCode())
	assert.False(t, ok)
}
