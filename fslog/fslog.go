// Package fslog implements crash-safe journaling for multi-block
// filesystem operations.
//
// An operation brackets its block writes with Begin and End and routes
// every mutated block through Write instead of a direct durable write.
// Writes from all operations in the current window accumulate in one
// transaction; when the last outstanding operation calls End, that caller
// commits the whole transaction inline. After a crash, MkLog's recovery
// either replays the entire committed transaction or finds none, so the
// disk never holds a partial set of one operation's writes.
//
// The on-disk log region is a header block followed by payload slots:
//
//	header: count | home address per slot
//	slot 0, slot 1, ...
//
// The header's count is the commit point: a single durable header write
// moves it from 0 to the transaction length, and back.
package fslog

import (
	"sync"

	"github.com/mit-pdos/go-fslog/bio"
	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/super"
	"github.com/mit-pdos/go-fslog/util"
)

type Log struct {
	mu   *sync.Mutex
	cond *sync.Cond
	fs   *super.FsSuper
	bc   *bio.Cache

	// In-memory mirror of the header, guarded by mu. Persisted only at
	// the commit point.
	count uint64
	addrs []common.Bnum

	outstanding uint64
	committing  bool
}

// MkLog initializes the journal over a formatted disk and runs recovery
// before admitting any operation.
func MkLog(fs *super.FsSuper, bc *bio.Cache) *Log {
	mu := new(sync.Mutex)
	l := &Log{
		mu:    mu,
		cond:  sync.NewCond(mu),
		fs:    fs,
		bc:    bc,
		addrs: make([]common.Bnum, fs.NLogSlots()),
	}
	l.recover()
	util.DPrintf(1, "fslog: ready, %d slots", fs.NLogSlots())
	return l
}

// Begin admits one operation into the current transaction window. It
// blocks while a commit is in progress, or while admitting the operation
// could let the transaction outgrow the log: every in-flight operation
// reserves MAXOPBLOCKS slots on top of what is already logged, since how
// much an operation will write is only known in hindsight.
func (l *Log) Begin() {
	l.mu.Lock()
	for {
		if l.committing {
			l.cond.Wait()
		} else if l.count+(l.outstanding+1)*common.MAXOPBLOCKS > l.fs.NLogSlots() {
			l.cond.Wait()
		} else {
			l.outstanding++
			break
		}
	}
	l.mu.Unlock()
}

// End finishes one operation. The caller whose End brings the window to
// zero outstanding operations commits the accumulated transaction before
// returning; everyone else returns immediately after releasing their
// space reservation.
func (l *Log) End() {
	var doCommit = false
	l.mu.Lock()
	if l.outstanding == 0 {
		panic("fslog: End without Begin")
	}
	l.outstanding--
	if l.committing {
		panic("fslog: End during commit")
	}
	if l.outstanding == 0 {
		doCommit = true
		l.committing = true
	} else {
		// A waiter in Begin may now fit.
		l.cond.Broadcast()
	}
	l.mu.Unlock()

	if doCommit {
		// Commit I/O runs without the mutex; committing=true keeps
		// Begin blocked and excludes a second commit.
		l.commit()
		l.mu.Lock()
		l.committing = false
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

// Write records b as part of the pending transaction in place of a direct
// durable write. The caller must be inside a Begin/End bracket and must
// still hold b. Re-logging an already-logged block is absorbed into its
// existing slot; the content that commits is whatever the cache holds at
// commit time.
func (l *Log) Write(b *bio.Buf) {
	l.mu.Lock()
	if l.count >= l.fs.NLogSlots() {
		panic("fslog: too big a transaction")
	}
	if l.outstanding < 1 {
		panic("fslog: Write outside of op")
	}
	var i = l.count
	for j := uint64(0); j < l.count; j++ {
		if l.addrs[j] == b.Blkno {
			// log absorption
			i = j
			break
		}
	}
	if i == l.count {
		l.addrs[i] = b.Blkno
		l.bc.Pin(b)
		l.count++
		util.DPrintf(5, "fslog: write %d in slot %d", b.Blkno, i)
	} else {
		util.DPrintf(5, "fslog: absorb %d in slot %d", b.Blkno, i)
	}
	l.mu.Unlock()
}
