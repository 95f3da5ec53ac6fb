// Package pump implements the single-threaded consumer that drains the
// transport's inbound queue on the host's own execution turn. Command
// handlers may touch state that is only safe on the host thread, so the
// embedding application calls Drain exactly once per tick and nothing
// else ever consumes the queue.
//
// Drain is bounded by both a time budget and a message count; whatever is
// left stays queued for the next turn. Crossing the queue's high-water
// mark logs a warning as an early back-pressure signal. Each message is
// processed to completion before the next one is dequeued.
package pump
