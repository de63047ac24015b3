package mqtt

import (
	"sync"

	"github.com/jhyland87/Cryocooler-Controller/internal/command"
	"github.com/jhyland87/Cryocooler-Controller/pkg/logger"
)

const commandQueueSize = 16

// commandQueue runs commands received on the command topic on its own
// goroutine, in arrival order. paho message handlers must not block, and
// running a command waits on the control loop and then on the reply's
// publish ack.
type commandQueue struct {
	handler CommandHandler
	reply   func(command.Reply) error
	log     logger.Logger

	in       chan []byte
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newCommandQueue(h CommandHandler, reply func(command.Reply) error, size int, log logger.Logger) *commandQueue {
	if size < 1 {
		size = 1
	}
	q := &commandQueue{
		handler: h,
		reply:   reply,
		log:     log,
		in:      make(chan []byte, size),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// submit queues a payload without blocking. It reports false if the queue
// is full or closed.
func (q *commandQueue) submit(payload []byte) bool {
	select {
	case <-q.stop:
		return false
	default:
	}
	select {
	case q.in <- payload:
		return true
	default:
		q.log.Warn("command queue full, dropping command", "payload", string(payload))
		return false
	}
}

func (q *commandQueue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		case p := <-q.in:
			reply := handleCommand(p, q.handler)
			q.log.Info("command", "command", reply.Command, "reply", reply.String())
			if err := q.reply(reply); err != nil {
				q.log.Warn("publish reply", "error", err)
			}
		}
	}
}

// close stops the worker after the command in progress, if any.
func (q *commandQueue) close() {
	q.stopOnce.Do(func() { close(q.stop) })
	<-q.done
}
