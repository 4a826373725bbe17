package adapter

import "sync"

// cleanupStack records acquired resources and releases them in reverse order.
// Backends push a release func as each resource comes up, so a partial
// initialization failure still tears down whatever was created. run is
// idempotent: each func fires at most once.
type cleanupStack struct {
	mu  sync.Mutex
	fns []func()
}

func (c *cleanupStack) push(fn func()) {
	c.mu.Lock()
	c.fns = append(c.fns, fn)
	c.mu.Unlock()
}

func (c *cleanupStack) run() {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
