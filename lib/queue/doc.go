// Package queue provides the lock-free multi-producer single-consumer
// queue that bridges the background connection receive loops to the
// host-side pump. Producers are the per-connection goroutines; the single
// consumer is the pump draining on the host's own execution turn.
//
// Guarantees:
//
//   - Push is safe from any number of goroutines and never blocks on the
//     consumer (unbounded linked list).
//   - Items pushed by a single producer are received in push order, which
//     gives the transport its per-connection FIFO guarantee.
//   - Depth is tracked with an O(1) counter so the pump can cheaply check
//     the high-water mark on every tick.
package queue
