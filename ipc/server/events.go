package server

import (
	"code.hybscloud.com/lfq"

	"github.com/bearlytools/xrtipc/ipc/protocol"
)

// eventQueue holds the session events waiting for the client to poll them. The arbiter, under
// the server lock, is the only producer and the session goroutine the only consumer.
type eventQueue struct {
	q lfq.SPSC[protocol.Event]
}

func newEventQueue() *eventQueue {
	e := &eventQueue{}
	e.q.Init(protocol.MaxEvents)
	return e
}

// push queues ev. It returns an error when the queue is full and ev was dropped.
func (e *eventQueue) push(ev protocol.Event) error {
	return e.q.Enqueue(&ev)
}

// pop returns the oldest event, or an EventNone event if there is none.
func (e *eventQueue) pop() protocol.Event {
	ev, err := e.q.Dequeue()
	if err != nil {
		return protocol.Event{Type: protocol.EventNone}
	}
	return ev
}
