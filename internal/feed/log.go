// Package feed holds id-keyed, time-ordered logs of immutable entries.
// Inserting an id that is already present is a no-op, which is what makes
// merging duplicated or echoed push notifications idempotent.
package feed

import (
	"sort"
	"time"
)

type Entry interface {
	EntryID() string
	EntryTime() time.Time
}

// Log keeps entries ordered oldest first; ties break on id. It is not safe
// for concurrent use; owners guard it with their own lock.
type Log[T Entry] struct {
	items []T
	ids   map[string]struct{}
}

func NewLog[T Entry](items ...T) *Log[T] {
	l := &Log[T]{ids: make(map[string]struct{})}
	for _, it := range items {
		l.Insert(it)
	}
	return l
}

func before[T Entry](a, b T) bool {
	ta, tb := a.EntryTime(), b.EntryTime()
	if ta.Equal(tb) {
		return a.EntryID() < b.EntryID()
	}
	return ta.Before(tb)
}

// Insert adds e unless an entry with the same id exists. It reports whether
// the log changed.
func (l *Log[T]) Insert(e T) bool {
	if _, ok := l.ids[e.EntryID()]; ok {
		return false
	}
	i := sort.Search(len(l.items), func(i int) bool { return before(e, l.items[i]) })
	l.items = append(l.items, e)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = e
	l.ids[e.EntryID()] = struct{}{}
	return true
}

// Replace overwrites the entry with e's id. Absent ids are left alone.
func (l *Log[T]) Replace(e T) bool {
	i := l.index(e.EntryID())
	if i < 0 {
		return false
	}
	l.items[i] = e
	return true
}

// Update applies fn to the entry with id in place.
func (l *Log[T]) Update(id string, fn func(*T)) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	fn(&l.items[i])
	return true
}

func (l *Log[T]) Remove(id string) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	delete(l.ids, id)
	return true
}

func (l *Log[T]) Has(id string) bool {
	_, ok := l.ids[id]
	return ok
}

func (l *Log[T]) Get(id string) (T, bool) {
	i := l.index(id)
	if i < 0 {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

func (l *Log[T]) Len() int { return len(l.items) }

// Ascending returns a copy, oldest first.
func (l *Log[T]) Ascending() []T {
	return append([]T(nil), l.items...)
}

// Descending returns a copy, newest first.
func (l *Log[T]) Descending() []T {
	out := make([]T, len(l.items))
	for i, it := range l.items {
		out[len(l.items)-1-i] = it
	}
	return out
}

func (l *Log[T]) index(id string) int {
	if _, ok := l.ids[id]; !ok {
		return -1
	}
	for i := range l.items {
		if l.items[i].EntryID() == id {
			return i
		}
	}
	return -1
}
