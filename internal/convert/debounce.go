package convert

import "time"

// debouncer queues a path on ready once it has gone quiet for delay. Each
// path is queued at most once until the receiver calls done for it.
type debouncer struct {
	delay  time.Duration
	ready  chan string
	quit   <-chan struct{}
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration, quit <-chan struct{}) *debouncer {
	return &debouncer{
		delay:  delay,
		ready:  make(chan string, 16),
		quit:   quit,
		timers: make(map[string]*time.Timer),
	}
}

// touch records activity on path. Only the event loop may call it.
func (d *debouncer) touch(path string) {
	if t, ok := d.timers[path]; ok {
		// A fired timer has queued path already; the pending conversion
		// reads the file as it is now.
		if t.Stop() {
			t.Reset(d.delay)
		}
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		select {
		case d.ready <- path:
		case <-d.quit:
		}
	})
}

// done forgets path after it was received from ready.
func (d *debouncer) done(path string) {
	delete(d.timers, path)
}

func (d *debouncer) stop() {
	for _, t := range d.timers {
		t.Stop()
	}
}
