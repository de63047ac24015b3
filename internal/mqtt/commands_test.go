package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jhyland87/Cryocooler-Controller/internal/command"
	"github.com/jhyland87/Cryocooler-Controller/pkg/logger"
)

type replyRecorder struct {
	mu      sync.Mutex
	replies []command.Reply
	err     error
	got     chan struct{}
}

func newReplyRecorder() *replyRecorder {
	return &replyRecorder{got: make(chan struct{}, 64)}
}

func (r *replyRecorder) publish(reply command.Reply) error {
	r.mu.Lock()
	r.replies = append(r.replies, reply)
	err := r.err
	r.mu.Unlock()
	r.got <- struct{}{}
	return err
}

func (r *replyRecorder) wait(t *testing.T, n int) []command.Reply {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for reply %d of %d", i+1, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Reply(nil), r.replies...)
}

func TestCommandQueueDoesNotBlockSubmitter(t *testing.T) {
	release := make(chan struct{})
	h := func(n command.Name) command.Reply {
		<-release
		return command.OK(n, "done")
	}
	rec := newReplyRecorder()
	q := newCommandQueue(h, rec.publish, 4, logger.Log)
	defer q.close()

	submitted := make(chan bool, 1)
	go func() {
		ok := q.submit([]byte(`{"command":"start"}`))
		ok = q.submit([]byte(`{"command":"status"}`)) && ok
		submitted <- ok
	}()

	select {
	case ok := <-submitted:
		if !ok {
			t.Fatal("submit rejected with room in the queue")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submit blocked while the handler was busy")
	}

	close(release)
	replies := rec.wait(t, 2)
	if replies[0].Command != command.Start || replies[1].Command != command.Status {
		t.Errorf("replies out of order: %+v", replies)
	}
}

func TestCommandQueueRepliesToBadPayload(t *testing.T) {
	called := false
	h := func(n command.Name) command.Reply {
		called = true
		return command.OK(n, "done")
	}
	rec := newReplyRecorder()
	q := newCommandQueue(h, rec.publish, 1, logger.Log)
	defer q.close()

	q.submit([]byte(`{"command":"reboot"}`))
	replies := rec.wait(t, 1)
	if replies[0].OK {
		t.Errorf("bad payload accepted: %+v", replies[0])
	}
	if called {
		t.Error("handler ran for an unknown command")
	}
}

func TestCommandQueueDropsWhenFull(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	h := func(n command.Name) command.Reply {
		started <- struct{}{}
		<-release
		return command.OK(n, "done")
	}
	rec := newReplyRecorder()
	q := newCommandQueue(h, rec.publish, 1, logger.Log)

	q.submit([]byte("start"))
	<-started // worker is busy with the first command
	if !q.submit([]byte("stop")) {
		t.Fatal("second command should fit in the queue")
	}
	if q.submit([]byte("off")) {
		t.Error("third command should be dropped")
	}

	close(release)
	rec.wait(t, 2)
	q.close()

	if q.submit([]byte("status")) {
		t.Error("submit after close should be rejected")
	}
}

func TestCommandQueueSurvivesReplyError(t *testing.T) {
	h := func(n command.Name) command.Reply { return command.OK(n, "done") }
	rec := newReplyRecorder()
	rec.err = errors.New("publish timeout")
	q := newCommandQueue(h, rec.publish, 2, logger.Log)
	defer q.close()

	q.submit([]byte("start"))
	q.submit([]byte("stop"))
	if got := rec.wait(t, 2); len(got) != 2 {
		t.Errorf("replies: %+v", got)
	}
}
