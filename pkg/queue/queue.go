// Copyright 2025 Certen Protocol
//
// Queue - append-only, insertion-ordered sequence of pending transitions
// awaiting a flush into an optimistic batch.
package queue

import (
	"sync"
)

// Transition is one queued pure/view call: the function to invoke, its
// positional scalar arguments, and the new state it predicts.
type Transition struct {
	FunctionName      string
	Args              []string
	PredictedNewState [32]byte
}

// Queue holds transitions in the order they were queued. Only pure
// functions may be queued (the caller is responsible for rejecting
// non-pure function names before calling Enqueue).
type Queue struct {
	mu    sync.Mutex
	items []Transition
}

// New builds an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends a transition.
func (q *Queue) Enqueue(functionName string, args []string, predictedNewState [32]byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Transition{FunctionName: functionName, Args: args, PredictedNewState: predictedNewState})
}

// Len reports how many transitions are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queued transitions in order.
func (q *Queue) Items() []Transition {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Transition(nil), q.items...)
}

// QueuedState returns the last queued transition's predicted new state, or
// accountCurrentState if nothing is queued.
func (q *Queue) QueuedState(accountCurrentState [32]byte) [32]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return accountCurrentState
	}
	return q.items[len(q.items)-1].PredictedNewState
}

// DropPrefix removes the first n queued transitions, leaving the rest
// queued in order. Called after a successful send_queue with n equal to
// the number of transitions that were actually submitted.
func (q *Queue) DropPrefix(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 {
		return
	}
	if n >= len(q.items) {
		q.items = nil
		return
	}
	q.items = append([]Transition(nil), q.items[n:]...)
}
