package services

import "sync"

// GuaranteeLocks serializes mutations per guarantee id. The decision
// recorder and the correction service share one instance, so every
// write path for a guarantee is mutually exclusive while independent
// guarantees proceed in parallel.
type GuaranteeLocks struct {
	locks sync.Map // guarantee id -> *sync.Mutex
}

// NewGuaranteeLocks creates an empty lock set
func NewGuaranteeLocks() *GuaranteeLocks {
	return &GuaranteeLocks{}
}

// Lock acquires the mutex for a guarantee id and returns the unlock
// function.
func (l *GuaranteeLocks) Lock(guaranteeID uint) func() {
	mu, _ := l.locks.LoadOrStore(guaranteeID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
