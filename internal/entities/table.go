package entities

// table is an id-keyed map that remembers insertion order.
type table[T any] struct {
	byID  map[int64]T
	order []int64
}

func newTable[T any]() table[T] {
	return table[T]{byID: make(map[int64]T)}
}

// upsert stores v under id. An existing id keeps its position.
func (t *table[T]) upsert(id int64, v T) bool {
	_, exists := t.byID[id]
	t.byID[id] = v
	if !exists {
		t.order = append(t.order, id)
	}
	return !exists
}

// prepend stores v under id and moves id to the head of the order.
func (t *table[T]) prepend(id int64, v T) {
	t.byID[id] = v
	t.order = append([]int64{id}, without(t.order, id)...)
}

func (t *table[T]) get(id int64) (T, bool) {
	v, ok := t.byID[id]
	return v, ok
}

func (t *table[T]) remove(id int64) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	t.order = without(t.order, id)
	return true
}

func (t *table[T]) reset() {
	t.byID = make(map[int64]T)
	t.order = nil
}

func (t *table[T]) list(clone func(T) T) []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, clone(t.byID[id]))
	}
	return out
}

// index maps a parent id to an ordered list of child ids.
type index map[int64][]int64

func (ix index) add(parent, child int64) {
	for _, id := range ix[parent] {
		if id == child {
			return
		}
	}
	ix[parent] = append(ix[parent], child)
}

func (ix index) drop(parent, child int64) {
	ids := without(ix[parent], child)
	if len(ids) == 0 {
		delete(ix, parent)
		return
	}
	ix[parent] = ids
}

func (ix index) ids(parent int64) []int64 {
	src := ix[parent]
	out := make([]int64, len(src))
	copy(out, src)
	return out
}

func without(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
