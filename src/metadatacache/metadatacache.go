// Package metadatacache memoizes per-file metadata digests used to decide
// whether a compile action's inputs have changed since the last build,
// grounded in the same xattr-memoization idiom as the teacher's PathHasher.
package metadatacache

import (
	"encoding/hex"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/djherbis/atime"
	"github.com/pkg/xattr"
)

const xattrName = "user.ccaction_digest"

// Cache memoizes a per-path content digest, consulting (and populating) a
// filesystem extended attribute before falling back to reading the file, the
// same trick the teacher's PathHasher uses to avoid re-hashing unchanged
// outputs on every build.
type Cache struct {
	root      string
	useXattrs bool

	mu   sync.RWMutex
	memo map[string]string
}

// New returns a Cache rooted at root. useXattrs controls whether digests are
// persisted to a filesystem extended attribute; the attribute is only read
// back for paths under plz-out/, other paths are re-hashed on first use in
// each process. Callers running on a filesystem without xattr support
// should pass false.
func New(root string, useXattrs bool) *Cache {
	return &Cache{root: root, useXattrs: useXattrs, memo: map[string]string{}}
}

// Digest returns a stable digest for the file at path, relative to the
// cache's root. Repeated calls for an unchanged path return the same value
// without re-reading the file, as long as the process doesn't restart.
func (c *Cache) Digest(path string) (string, error) {
	c.mu.RLock()
	if d, ok := c.memo[path]; ok {
		c.mu.RUnlock()
		return d, nil
	}
	c.mu.RUnlock()

	if c.useXattrs && strings.HasPrefix(path, "plz-out/") {
		if b, err := xattr.LGet(c.fullPath(path), xattrName); err == nil {
			d := hex.EncodeToString(b)
			c.store(path, d)
			return d, nil
		}
	}

	raw, err := c.computeDigest(path)
	if err != nil {
		return "", err
	}
	d := hex.EncodeToString(raw)
	c.store(path, d)
	if c.useXattrs {
		_ = xattr.LSet(c.fullPath(path), xattrName, raw) // best-effort: a stale xattr just costs a re-hash later
	}
	return d, nil
}

func (c *Cache) computeDigest(path string) ([]byte, error) {
	f, err := os.Open(c.fullPath(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := xxhash.New()
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}
	return h.Sum(nil), nil
}

func (c *Cache) fullPath(path string) string {
	if c.root == "" {
		return path
	}
	return c.root + "/" + path
}

func (c *Cache) store(path, digest string) {
	c.mu.Lock()
	c.memo[path] = digest
	c.mu.Unlock()
}

// Invalidate drops any memoized digest for path, forcing the next Digest
// call to recompute it from disk.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.memo, path)
	c.mu.Unlock()
}

// LastAccess returns the access time recorded for path, used by a cache
// eviction policy to find the least-recently-used entries.
func LastAccess(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return atime.Get(info).Unix(), nil
}
