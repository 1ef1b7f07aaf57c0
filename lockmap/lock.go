// Package lockmap provides sleep locks over an unbounded space of uint64
// addresses, as if there were one lock per possible address.
//
// Only held addresses consume memory: the map is sharded by address, each
// shard tracks the set of currently-held addresses, and an address is
// removed from its shard as soon as it is released.
package lockmap

import (
	"sync"
)

const NSHARD uint64 = 43

type lockShard struct {
	mu   *sync.Mutex
	cond *sync.Cond
	held map[uint64]bool
}

func mkLockShard() *lockShard {
	mu := new(sync.Mutex)
	return &lockShard{
		mu:   mu,
		cond: sync.NewCond(mu),
		held: make(map[uint64]bool),
	}
}

func (s *lockShard) acquire(addr uint64) {
	s.mu.Lock()
	for s.held[addr] {
		s.cond.Wait()
	}
	s.held[addr] = true
	s.mu.Unlock()
}

func (s *lockShard) release(addr uint64) {
	s.mu.Lock()
	if !s.held[addr] {
		panic("lockmap: release of unheld address")
	}
	delete(s.held, addr)
	s.cond.Broadcast()
	s.mu.Unlock()
}

type LockMap struct {
	shards []*lockShard
}

func MkLockMap() *LockMap {
	shards := make([]*lockShard, 0, NSHARD)
	for i := uint64(0); i < NSHARD; i++ {
		shards = append(shards, mkLockShard())
	}
	return &LockMap{shards: shards}
}

func (lmap *LockMap) Acquire(addr uint64) {
	lmap.shards[addr%NSHARD].acquire(addr)
}

func (lmap *LockMap) Release(addr uint64) {
	lmap.shards[addr%NSHARD].release(addr)
}
