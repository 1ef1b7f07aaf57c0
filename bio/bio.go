// Package bio is the buffer cache: an in-memory pool of disk blocks with
// per-block sleep locks, reference counts, and pin counts.
//
// The usual sequence is Bread, mutate Data, hand the buffer to the journal
// (which pins it), Brelse. Bread returns the buffer exclusively locked;
// Brelse unlocks it. Pinned buffers are exempt from eviction until the
// journal unpins them, which is what keeps a modified block in memory while
// its only durable copy is the not-yet-installed log copy.
package bio

import (
	"sync"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/lockmap"
	"github.com/mit-pdos/go-fslog/util"
)

// Buf is one cached block. Data aliases the cache's copy; callers may
// mutate it only between Bread and Brelse.
type Buf struct {
	Blkno common.Bnum
	Data  disk.Block

	refcnt uint64
	pincnt uint64
}

type Cache struct {
	mu    *sync.Mutex
	d     disk.Disk
	locks *lockmap.LockMap
	bufs  map[common.Bnum]*Buf
	nent  uint64
}

// MkCache creates a cache that aims to hold at most nent blocks. The bound
// is advisory: referenced and pinned buffers are never evicted, so the
// cache can exceed it while callers hold buffers.
func MkCache(d disk.Disk, nent uint64) *Cache {
	return &Cache{
		mu:    new(sync.Mutex),
		d:     d,
		locks: lockmap.MkLockMap(),
		bufs:  make(map[common.Bnum]*Buf),
		nent:  nent,
	}
}

// evict drops one idle entry if the cache is over budget. Caller holds mu.
// Every cached copy is clean (writes go through Bwrite), so dropping an
// idle entry loses nothing.
func (c *Cache) evict() {
	if uint64(len(c.bufs)) < c.nent {
		return
	}
	for bn, b := range c.bufs {
		if b.refcnt == 0 && b.pincnt == 0 {
			util.DPrintf(5, "bio: evict %d", bn)
			delete(c.bufs, bn)
			return
		}
	}
}

// Bread returns the cached copy of block bn, filling it from disk on a
// miss, with bn's sleep lock held and the buffer's refcount bumped.
func (c *Cache) Bread(bn common.Bnum) *Buf {
	c.locks.Acquire(uint64(bn))
	c.mu.Lock()
	b, ok := c.bufs[bn]
	if !ok {
		c.evict()
		b = &Buf{Blkno: bn}
		c.bufs[bn] = b
	}
	b.refcnt++
	c.mu.Unlock()

	// Fill outside mu: bn's sleep lock is held, so nobody else can
	// observe the buffer before Data is set.
	if b.Data == nil {
		b.Data = c.d.Read(uint64(bn))
	}
	util.DPrintf(5, "bio: bread %d", bn)
	return b
}

// Bwrite durably writes b through to disk. The cache copy stays current.
// Blocks the journal intends to log must go through the journal instead.
func (c *Cache) Bwrite(b *Buf) {
	util.DPrintf(5, "bio: bwrite %d", b.Blkno)
	c.d.Write(uint64(b.Blkno), b.Data)
	c.d.Barrier()
}

// Brelse drops the reference taken by Bread and releases the sleep lock.
func (c *Cache) Brelse(b *Buf) {
	c.mu.Lock()
	if b.refcnt == 0 {
		panic("bio: brelse of unreferenced buf")
	}
	b.refcnt--
	c.mu.Unlock()
	c.locks.Release(uint64(b.Blkno))
	util.DPrintf(5, "bio: brelse %d", b.Blkno)
}

// Pin excludes b from eviction until a matching Unpin. Pins survive
// Brelse; they belong to the journal, not to the Bread/Brelse bracket.
func (c *Cache) Pin(b *Buf) {
	c.mu.Lock()
	b.pincnt++
	c.mu.Unlock()
}

func (c *Cache) Unpin(b *Buf) {
	c.mu.Lock()
	if b.pincnt == 0 {
		panic("bio: unpin of unpinned buf")
	}
	b.pincnt--
	c.mu.Unlock()
}
