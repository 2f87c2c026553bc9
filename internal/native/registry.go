package native

import (
	"os"
	"sync"
)

// registry tracks every store open in the process so that a second open
// of the same file shares the first one's state instead of racing it on
// separate descriptors.
var registry struct {
	mu     sync.Mutex
	stores []*store
}

// lookupStore returns the open store for the file described by info.
// The caller holds registry.mu.
func lookupStore(info os.FileInfo) *store {
	for _, s := range registry.stores {
		if os.SameFile(s.info, info) {
			return s
		}
	}
	return nil
}

// lookupPath is lookupStore for a path that may not exist.
func lookupPath(path string) *store {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return lookupStore(info)
}

func registerStore(s *store) {
	registry.stores = append(registry.stores, s)
}

// unregisterStore forgets s. The caller holds registry.mu.
func unregisterStore(s *store) {
	for i, other := range registry.stores {
		if other == s {
			registry.stores = append(registry.stores[:i], registry.stores[i+1:]...)
			return
		}
	}
}

// OpenFiles returns the number of distinct files open in the process.
func OpenFiles() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.stores)
}
