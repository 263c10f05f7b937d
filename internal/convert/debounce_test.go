package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_TouchAfterFireQueuesOnce(t *testing.T) {
	quit := make(chan struct{})
	defer close(quit)
	d := newDebouncer(time.Millisecond, quit)
	defer d.stop()

	d.touch("a.xml")
	require.Eventually(t, func() bool { return len(d.ready) == 1 }, 5*time.Second, time.Millisecond)

	// The path is queued but not yet taken; more activity must not queue it
	// a second time.
	d.touch("a.xml")
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, d.ready, 1)

	d.done(<-d.ready)
	d.touch("a.xml")
	require.Eventually(t, func() bool { return len(d.ready) == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, "a.xml", <-d.ready)
}

func TestDebouncer_ResetsWhilePending(t *testing.T) {
	quit := make(chan struct{})
	defer close(quit)
	d := newDebouncer(100*time.Millisecond, quit)
	defer d.stop()

	d.touch("b.stb")
	d.touch("b.stb")
	d.touch("b.stb")
	select {
	case p := <-d.ready:
		assert.Equal(t, "b.stb", p)
	case <-time.After(5 * time.Second):
		t.Fatal("path never became ready")
	}
	d.done("b.stb")
	assert.Empty(t, d.ready)
}
