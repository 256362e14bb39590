package memory

import "sync"

type fault struct {
	err       error
	remaining int
}

// faults holds injected store failures, shared by a store and its transactions
type faults struct {
	mu     sync.Mutex
	byName map[string]*fault
}

func newFaults() *faults {
	return &faults{byName: make(map[string]*fault)}
}

func (f *faults) set(op string, err error) {
	f.setAfter(op, 0, err)
}

func (f *faults) setAfter(op string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err == nil {
		delete(f.byName, op)
		return
	}
	f.byName[op] = &fault{err: err, remaining: n}
}

func (f *faults) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	flt, ok := f.byName[op]
	if !ok {
		return nil
	}
	if flt.remaining > 0 {
		flt.remaining--
		return nil
	}
	return flt.err
}
