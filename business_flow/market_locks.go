package businessflow

import "sync"

// Collision detection must serialize per market so concurrent assignment
// writes cannot miss or double-log an overlap; cross-market writes proceed
// in parallel.
var (
	marketLocksMu sync.Mutex
	marketLocks   = make(map[uint]*sync.Mutex)
)

func lockMarket(marketID uint) *sync.Mutex {
	marketLocksMu.Lock()
	mu, ok := marketLocks[marketID]
	if !ok {
		mu = &sync.Mutex{}
		marketLocks[marketID] = mu
	}
	marketLocksMu.Unlock()

	mu.Lock()
	return mu
}
