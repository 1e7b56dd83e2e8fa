// Package list implements the generic intrusive singly-linked list
// primitive used throughout the kernel: the ready queue, condition waiter
// lists, the sleep wheel, and FS buffer chains are all instances of List.
//
// Unlike the original C implementation, which threads nodes together via a
// caller-supplied byte offset into a void pointer, this package expresses
// membership as a type parameter: an element embeds a Link[T] and exposes
// it through the Elem[T] interface. No node is ever copied onto the heap
// by the list itself; callers own storage, the list only threads pointers.
package list

// Link is embedded by any type that wants to participate in a List.
type Link[T any] struct {
	next T
	set  bool
}

// Elem is implemented by pointer-receiver node types that embed a Link[T].
type Elem[T any] interface {
	comparable
	Next() (T, bool)
	SetNext(v T, ok bool)
}

// Next returns the linked successor, if any. Embedders promote this method
// to satisfy Elem[T].
func (l *Link[T]) Next() (T, bool) {
	return l.next, l.set
}

// SetNext updates the linked successor. Embedders promote this method to
// satisfy Elem[T].
func (l *Link[T]) SetNext(v T, ok bool) {
	l.next = v
	l.set = ok
}

// List is an intrusive singly-linked list of elements of type T.
type List[T Elem[T]] struct {
	head T
	tail T
	has  bool
}

// Empty reports whether the list has no elements.
func (l *List[T]) Empty() bool {
	return !l.has
}

// Head returns the first element, or the zero value and false if empty.
func (l *List[T]) Head() (T, bool) {
	return l.head, l.has
}

// Tail returns the last element, or the zero value and false if empty.
func (l *List[T]) Tail() (T, bool) {
	return l.tail, l.has
}

// Push prepends n to the list in O(1).
func (l *List[T]) Push(n T) {
	n.SetNext(l.head, l.has)
	if !l.has {
		l.tail = n
	}
	l.head = n
	l.has = true
}

// Append adds n to the tail of the list in O(1).
func (l *List[T]) Append(n T) {
	var zero T
	n.SetNext(zero, false)
	if !l.has {
		l.head = n
		l.tail = n
		l.has = true
		return
	}
	l.tail.SetNext(n, true)
	l.tail = n
}

// Pop detaches and returns the head element.
func (l *List[T]) Pop() (T, bool) {
	if !l.has {
		var zero T
		return zero, false
	}
	n := l.head
	next, ok := n.Next()
	l.head = next
	l.has = ok
	if !ok {
		var zero T
		l.tail = zero
	}
	var zero T
	n.SetNext(zero, false)
	return n, true
}

// Less reports whether b belongs immediately before a in an InsertSorted
// ordering: it returns true iff b should be placed before a.
type Less[T any] func(a, b T) bool

// InsertSorted inserts n keeping the list ordered per less, preserving
// stability among elements the comparator treats as equal.
func (l *List[T]) InsertSorted(n T, less Less[T]) {
	if !l.has {
		l.Push(n)
		return
	}
	head := l.head
	if less(head, n) {
		l.Push(n)
		return
	}
	prev := head
	cur, ok := head.Next()
	for ok {
		if less(cur, n) {
			break
		}
		prev = cur
		cur, ok = cur.Next()
	}
	n.SetNext(cur, ok)
	prev.SetNext(n, true)
	if !ok {
		l.tail = n
	}
}

// Match is the predicate used by Search and SearchPop.
type Match[T any, P any] func(n T, param P) bool

// Search walks the list and returns the first element matching param,
// along with its predecessor (zero value, false if it is the head).
func Search[T Elem[T], P any](l *List[T], param P, match Match[T, P]) (node T, prev T, hasPrev bool, found bool) {
	if !l.has {
		return node, prev, false, false
	}
	var pr T
	havePrev := false
	cur := l.head
	ok := true
	for ok {
		if match(cur, param) {
			return cur, pr, havePrev, true
		}
		pr = cur
		havePrev = true
		cur, ok = cur.Next()
	}
	return node, prev, false, false
}

// SearchPop searches for an element matching param and detaches it.
func SearchPop[T Elem[T], P any](l *List[T], param P, match Match[T, P]) (T, bool) {
	node, prev, hasPrev, found := Search(l, param, match)
	if !found {
		var zero T
		return zero, false
	}
	next, ok := node.Next()
	if hasPrev {
		prev.SetNext(next, ok)
	} else {
		l.head = next
		l.has = ok
	}
	if !ok {
		l.tail = prev
		if !hasPrev {
			var zero T
			l.tail = zero
			l.has = false
		}
	}
	var zero T
	node.SetNext(zero, false)
	return node, true
}

// Remove deletes n from the list if present. No-op if n is not in the list.
func Remove[T Elem[T]](l *List[T], n T) bool {
	_, ok := SearchPop(l, n, func(cand T, target T) bool { return cand == target })
	return ok
}

// InList reports whether n is reachable from the list head.
func InList[T Elem[T]](l *List[T], n T) bool {
	if !l.has {
		return false
	}
	cur := l.head
	ok := true
	for ok {
		if cur == n {
			return true
		}
		cur, ok = cur.Next()
	}
	return false
}

// NumItems counts the elements currently in the list in O(n).
func NumItems[T Elem[T]](l *List[T]) int {
	n := 0
	if !l.has {
		return 0
	}
	cur := l.head
	ok := true
	for ok {
		n++
		cur, ok = cur.Next()
	}
	return n
}
