package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/concerto-app/theatre/internal/timer"
)

func TestTimerFires(t *testing.T) {
	fired := make(chan struct{})
	timer.New(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire in time")
	}
}

func TestCancelBeforeFirePreventsCallback(t *testing.T) {
	var calls int32
	tm := timer.New(50*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	won := tm.Cancel()
	assert.True(t, won)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCancelAfterFireLosesRace(t *testing.T) {
	fired := make(chan struct{})
	tm := timer.New(5*time.Millisecond, func() { close(fired) })

	<-fired
	time.Sleep(5 * time.Millisecond)
	won := tm.Cancel()
	assert.False(t, won)
}
