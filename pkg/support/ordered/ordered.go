// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ordered implements a map that remembers the insertion order of its keys, and the
// conversion between a "map of columns" and a "slice of records" built on top of it.
package ordered

import (
	"fmt"
	"iter"
	"strings"

	"github.com/pkg/errors"
)

// ErrShapeMismatch is returned when columns have different lengths, or records have different keys.
var ErrShapeMismatch = errors.New("shape mismatch")

// Map is a map from K to V that iterates over its keys in insertion order.
//
// The zero value is not usable, create it with New.
type Map[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// New returns an empty Map. Size is optional, and if given will reserve the expected size.
func New[K comparable, V any](size ...int) *Map[K, V] {
	n := 0
	if len(size) > 0 {
		n = size[0]
	}
	return &Map[K, V]{
		keys:   make([]K, 0, n),
		values: make(map[K]V, n),
	}
}

// Set key to value. A new key is appended to the end of the key order, an existing key keeps its position.
//
// It returns the Map itself, so calls can be cascaded.
func (m *Map[K, V]) Set(key K, value V) *Map[K, V] {
	if _, found := m.values[key]; !found {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get returns the value for key, and whether it was found.
func (m *Map[K, V]) Get(key K) (value V, found bool) {
	value, found = m.values[key]
	return
}

// Has returns whether key is in the Map.
func (m *Map[K, V]) Has(key K) bool {
	_, found := m.values[key]
	return found
}

// Len returns the number of keys.
func (m *Map[K, V]) Len() int { return len(m.keys) }

// Keys returns a copy of the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// All iterates over key/value pairs in insertion order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, key := range m.keys {
			if !yield(key, m.values[key]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy of the Map: keys and values are copied, but not what the values point to.
func (m *Map[K, V]) Clone() *Map[K, V] {
	m2 := New[K, V](len(m.keys))
	for key, value := range m.All() {
		m2.Set(key, value)
	}
	return m2
}

// String implements fmt.Stringer.
func (m *Map[K, V]) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for ii, key := range m.keys {
		if ii > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "%v: %v", key, m.values[key])
	}
	sb.WriteString("}")
	return sb.String()
}

// ToRecords converts a map of columns (key to a sequence of values) to a slice of records (key to one value),
// zipping the columns positionally. Each record holds the keys in the same order as columns.
//
// Example:
//
//	columns = {"a": [0, 1], "b": [2, 3]}
//	records = [{"a": 0, "b": 2}, {"a": 1, "b": 3}]
//
// All columns must have the same length, otherwise it returns ErrShapeMismatch.
func ToRecords[K comparable, V any](columns *Map[K, []V]) ([]*Map[K, V], error) {
	if columns.Len() == 0 {
		return nil, nil
	}
	firstKey := columns.keys[0]
	numRecords := len(columns.values[firstKey])
	for key, column := range columns.All() {
		if len(column) != numRecords {
			return nil, errors.Wrapf(ErrShapeMismatch, "column %v has %d elements, but column %v has %d",
				key, len(column), firstKey, numRecords)
		}
	}
	records := make([]*Map[K, V], numRecords)
	for ii := range records {
		record := New[K, V](columns.Len())
		for key, column := range columns.All() {
			record.Set(key, column[ii])
		}
		records[ii] = record
	}
	return records, nil
}

// ToColumns is the inverse of ToRecords: it converts a slice of records to a map of columns.
// The key order is taken from the first record.
//
// Every record must have exactly the keys of the first record, otherwise it returns ErrShapeMismatch.
func ToColumns[K comparable, V any](records []*Map[K, V]) (*Map[K, []V], error) {
	if len(records) == 0 {
		return New[K, []V](), nil
	}
	first := records[0]
	columns := New[K, []V](first.Len())
	for _, key := range first.keys {
		columns.Set(key, make([]V, len(records)))
	}
	for ii, record := range records {
		if record.Len() != first.Len() {
			return nil, errors.Wrapf(ErrShapeMismatch, "record #%d has %d keys, but record #0 has %d",
				ii, record.Len(), first.Len())
		}
		for _, key := range first.keys {
			value, found := record.Get(key)
			if !found {
				return nil, errors.Wrapf(ErrShapeMismatch, "record #%d is missing key %v", ii, key)
			}
			columns.values[key][ii] = value
		}
	}
	return columns, nil
}
