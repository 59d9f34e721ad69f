package cache

import "sync"

// Fingerprints maps file identity (absolute path) to the last computed digest.
//
// Entries live for the process lifetime and are only removed explicitly,
// when the file vanishes or is uploaded. An entry is stale if the file was
// rewritten in place between rounds; nothing here detects that.
type Fingerprints struct {
	mu      sync.RWMutex
	digests map[string]string
}

// NewFingerprints creates an empty cache
func NewFingerprints() *Fingerprints {
	return &Fingerprints{
		digests: make(map[string]string),
	}
}

// Get returns the cached digest for identity
func (c *Fingerprints) Get(identity string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	digest, ok := c.digests[identity]
	return digest, ok
}

// Put records the digest for identity, replacing any previous value
func (c *Fingerprints) Put(identity, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.digests[identity] = digest
}

// Evict drops identity. Evicting an unknown identity is a no-op.
func (c *Fingerprints) Evict(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.digests, identity)
}

// Len returns the number of cached entries
func (c *Fingerprints) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.digests)
}
