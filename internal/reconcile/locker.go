package reconcile

import "sync"

// BarLocker serialises work per bar while letting different bars run in parallel.
type BarLocker struct {
	locks sync.Map // bar ID -> *sync.Mutex
}

// Lock blocks until the bar is free and returns the matching unlock function.
func (l *BarLocker) Lock(barID int64) func() {
	v, _ := l.locks.LoadOrStore(barID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
