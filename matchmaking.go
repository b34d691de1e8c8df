/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// waiter is one connection waiting for a quick match.
type waiter struct {
	id   string
	name string
}

// queueKey buckets waiters by the parameters a match must agree on.
type queueKey struct {
	size     int
	perTurn  int
	topicKey string
}

// matchQueue holds quick-match waiters, bucketed by queueKey. All methods
// run on the engine goroutine, so a waiter can never be claimed twice.
type matchQueue struct {
	buckets map[queueKey][]waiter
}

func newMatchQueue() *matchQueue {
	return &matchQueue{buckets: make(map[queueKey][]waiter)}
}

// enqueue appends w to the bucket for key. Re-queueing the same connection
// under the same key is a no-op.
func (q *matchQueue) enqueue(key queueKey, w waiter) {
	bucket := q.buckets[key]
	for _, existing := range bucket {
		if existing.id == w.id {
			return
		}
	}
	q.buckets[key] = append(bucket, w)
}

// cancel removes the connection from the bucket for key, if present.
func (q *matchQueue) cancel(key queueKey, id string) {
	bucket := q.buckets[key]
	for i, w := range bucket {
		if w.id == id {
			q.buckets[key] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// takeBatch removes and returns exactly key.size waiters, shuffled, or nil
// if the bucket has not reached critical mass. Callers loop until nil to
// drain bursts.
func (q *matchQueue) takeBatch(key queueKey) []waiter {
	bucket := q.buckets[key]
	if len(bucket) < key.size {
		return nil
	}

	shuffleInPlace(bucket)
	batch := make([]waiter, key.size)
	copy(batch, bucket[:key.size])
	q.buckets[key] = bucket[key.size:]

	return batch
}

func (q *matchQueue) waiting(key queueKey) int {
	return len(q.buckets[key])
}
