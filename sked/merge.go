package sked

import (
	"container/heap"
	"errors"
)

// mergeIterator k-way merges ascending sources into one ascending sequence.
// Ties are broken by source index, so on equal keys every value of source 0 is
// yielded before any value of source 1, and so on.
type mergeIterator[T any] struct {
	sources []Iterator[T]
	keyOf   func(T) Date
	queue   mergeQueue[T]
	primed  bool
	last    int
	cur     T
	err     error
}

func newMergeIterator[T any](sources []Iterator[T], keyOf func(T) Date) *mergeIterator[T] {
	return &mergeIterator[T]{
		sources: sources,
		keyOf:   keyOf,
		queue:   make(mergeQueue[T], 0, len(sources)),
		last:    -1,
	}
}

func (m *mergeIterator[T]) Next() bool {
	if m.err != nil {
		return false
	}

	if !m.primed {
		m.primed = true
		for i := range m.sources {
			m.pull(i)
		}
	} else if m.last >= 0 {
		// only the source we yielded from last needs to advance
		m.pull(m.last)
	}

	if m.err != nil || m.queue.Len() == 0 {
		m.last = -1
		return false
	}

	item := heap.Pop(&m.queue).(mergeItem[T])
	m.cur = item.value
	m.last = item.source

	return true
}

func (m *mergeIterator[T]) pull(source int) {
	src := m.sources[source]

	if src.Next() {
		value := src.Value()
		heap.Push(&m.queue, mergeItem[T]{value: value, key: m.keyOf(value), source: source})

		return
	}

	if err := src.Err(); err != nil {
		m.err = err
	}
}

func (m *mergeIterator[T]) Value() T {
	return m.cur
}

func (m *mergeIterator[T]) Err() error {
	return m.err
}

func (m *mergeIterator[T]) Close() error {
	errs := make([]error, 0, len(m.sources))
	for _, src := range m.sources {
		errs = append(errs, src.Close())
	}

	m.queue = m.queue[:0]
	m.last = -1

	return errors.Join(errs...)
}

/***** priority queue keyed by (date, source index) *****/

type mergeItem[T any] struct {
	value  T
	key    Date
	source int
}

type mergeQueue[T any] []mergeItem[T]

func (q mergeQueue[T]) Len() int {
	return len(q)
}

func (q mergeQueue[T]) Less(i, j int) bool {
	if c := q[i].key.Compare(q[j].key); c != 0 {
		return c < 0
	}

	return q[i].source < q[j].source
}

func (q mergeQueue[T]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *mergeQueue[T]) Push(x any) {
	*q = append(*q, x.(mergeItem[T]))
}

func (q *mergeQueue[T]) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]

	return item
}
