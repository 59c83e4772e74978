package sked

import (
	"errors"
)

// Iterator is a pull-based lazy sequence, modeled after sql.Rows.
//
//	for it.Next() {
//		v := it.Value()
//	}
//	if err := it.Err(); err != nil { ... }
//	_ = it.Close()
//
// Close may be called at any time to stop early and is safe to call more than once.
type Iterator[T any] interface {
	Next() bool
	Value() T
	Err() error
	Close() error
}

// Collect drains and closes the iterator.
func Collect[T any](it Iterator[T]) ([]T, error) {
	return Take(it, -1)
}

// Take pulls at most n values (all of them if n < 0) and closes the iterator.
func Take[T any](it Iterator[T], n int) ([]T, error) {
	values := make([]T, 0)

	for n < 0 || len(values) < n {
		if !it.Next() {
			break
		}

		values = append(values, it.Value())
	}

	return values, errors.Join(it.Err(), it.Close())
}

/***** slice *****/

type sliceIterator[T any] struct {
	items []T
	pos   int
}

// SliceIterator iterates over an in-memory slice.
func SliceIterator[T any](items []T) Iterator[T] {
	return &sliceIterator[T]{items: items}
}

func (s *sliceIterator[T]) Next() bool {
	if s.pos >= len(s.items) {
		return false
	}

	s.pos++

	return true
}

func (s *sliceIterator[T]) Value() T {
	return s.items[s.pos-1]
}

func (s *sliceIterator[T]) Err() error {
	return nil
}

func (s *sliceIterator[T]) Close() error {
	s.pos = len(s.items)
	return nil
}

/***** map *****/

type mapIterator[S, T any] struct {
	src Iterator[S]
	fn  func(S) T
	cur T
}

func mapValues[S, T any](src Iterator[S], fn func(S) T) Iterator[T] {
	return &mapIterator[S, T]{src: src, fn: fn}
}

func (m *mapIterator[S, T]) Next() bool {
	if !m.src.Next() {
		return false
	}

	m.cur = m.fn(m.src.Value())

	return true
}

func (m *mapIterator[S, T]) Value() T {
	return m.cur
}

func (m *mapIterator[S, T]) Err() error {
	return m.src.Err()
}

func (m *mapIterator[S, T]) Close() error {
	return m.src.Close()
}

/***** concat *****/

type concatIterator[T any] struct {
	parts []Iterator[T]
	idx   int
	err   error
}

func concat[T any](parts ...Iterator[T]) Iterator[T] {
	return &concatIterator[T]{parts: parts}
}

func (c *concatIterator[T]) Next() bool {
	for c.err == nil && c.idx < len(c.parts) {
		if c.parts[c.idx].Next() {
			return true
		}

		if err := c.parts[c.idx].Err(); err != nil {
			c.err = err
			return false
		}

		c.idx++
	}

	return false
}

func (c *concatIterator[T]) Value() T {
	return c.parts[c.idx].Value()
}

func (c *concatIterator[T]) Err() error {
	return c.err
}

func (c *concatIterator[T]) Close() error {
	errs := make([]error, 0, len(c.parts))
	for _, part := range c.parts {
		errs = append(errs, part.Close())
	}

	c.idx = len(c.parts)

	return errors.Join(errs...)
}
