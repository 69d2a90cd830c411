package syncmap

import "sync"

// Map is a typed wrapper over sync.Map.
type Map[K comparable, V any] struct {
	v sync.Map
}

func (m *Map[K, V]) Delete(key K) {
	m.v.Delete(key)
}

func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.v.Load(key)
	if !ok {
		return value, ok
	}
	return v.(V), ok
}

func (m *Map[K, V]) Store(key K, value V) {
	m.v.Store(key, value)
}

func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.v.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

// Len returns the number of entries observed by a single Range pass.
func (m *Map[K, V]) Len() int {
	n := 0
	m.v.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Values returns the values observed by a single Range pass.
func (m *Map[K, V]) Values() []V {
	var vs []V
	m.Range(func(_ K, v V) bool {
		vs = append(vs, v)
		return true
	})
	return vs
}
