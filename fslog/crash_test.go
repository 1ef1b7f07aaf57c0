package fslog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-fslog/bio"
	"github.com/mit-pdos/go-fslog/super"
)

// crashDisk simulates power loss: once armed with a write budget, writes
// past the budget never reach the underlying disk. The "machine" keeps
// running (the commit path completes in memory), but the image below
// reflects only what made it out before the crash, exactly like a kill at
// that I/O boundary.
type crashDisk struct {
	disk.Disk
	mu      sync.Mutex
	armed   bool
	left    int
	dropped int
}

func (d *crashDisk) arm(writes int) {
	d.mu.Lock()
	d.armed = true
	d.left = writes
	d.mu.Unlock()
}

func (d *crashDisk) Write(a uint64, v disk.Block) {
	d.mu.Lock()
	if d.armed {
		if d.left == 0 {
			d.dropped++
			d.mu.Unlock()
			return
		}
		d.left--
	}
	d.mu.Unlock()
	d.Disk.Write(a, v)
}

type crashHarness struct {
	cd *crashDisk
	fs *super.FsSuper
	bc *bio.Cache
	l  *Log
}

func mkCrashHarness() *crashHarness {
	cd := &crashDisk{Disk: disk.NewMemDisk(diskBlocks)}
	fs := super.MkFsSuper(cd)
	fs.Flush()
	h := &crashHarness{
		cd: cd,
		fs: fs,
		bc: bio.MkCache(cd, fs.LogSize),
	}
	h.l = MkLog(h.fs, h.bc)
	return h
}

// reboot recovers from the surviving image with a cold cache.
func (h *crashHarness) reboot() {
	h.cd.mu.Lock()
	h.cd.armed = false
	h.cd.mu.Unlock()
	h.bc = bio.MkCache(h.cd, h.fs.LogSize)
	h.l = MkLog(h.fs, h.bc)
}

func (h *crashHarness) writeData(i uint64, content disk.Block) {
	b := h.bc.Bread(h.fs.DataStart() + i)
	copy(b.Data, content)
	h.l.Write(b)
	h.bc.Brelse(b)
}

func (h *crashHarness) onDisk(i uint64) disk.Block {
	return h.cd.Disk.Read(uint64(h.fs.DataStart() + i))
}

// TestCrashAtEveryWriteBoundary runs the same two-block transaction with
// the crash injected after every possible prefix of its disk writes, and
// checks all-or-nothing after recovery each time.
//
// The transaction's write sequence is: 2 staged slots, header (commit
// point), 2 home blocks, header erase — 6 writes.
func TestCrashAtEveryWriteBoundary(t *testing.T) {
	const nblocks = 2
	const totalWrites = nblocks + 1 + nblocks + 1

	for allowed := 0; allowed <= totalWrites; allowed++ {
		h := mkCrashHarness()

		// Transaction 0 establishes known pre-state, fully durable.
		h.l.Begin()
		for i := uint64(0); i < nblocks; i++ {
			h.writeData(i, mkBlock(0x11))
		}
		h.l.End()

		// Transaction 1 crashes after `allowed` writes.
		h.cd.arm(allowed)
		h.l.Begin()
		for i := uint64(0); i < nblocks; i++ {
			h.writeData(i, mkBlock(0x22))
		}
		h.l.End()

		h.reboot()

		// Recovery must leave every home block at the old or the new
		// content, and the whole transaction must agree.
		committed := allowed > nblocks // header write reached disk
		for i := uint64(0); i < nblocks; i++ {
			want := mkBlock(0x11)
			if committed {
				want = mkBlock(0x22)
			}
			assert.Equal(t, want, h.onDisk(i),
				"crash after %d writes: block %d", allowed, i)
		}
		assert.Equal(t, uint64(0), ReadHdr(h.fs).Count,
			"crash after %d writes: header not erased by recovery", allowed)
	}
}

// Crash exactly after the commit-point header write: nothing installed
// yet, but recovery must install every staged slot.
func TestCrashAfterCommitPoint(t *testing.T) {
	const nblocks = 3
	h := mkCrashHarness()

	h.cd.arm(nblocks + 1) // staged slots + header, no installs
	h.l.Begin()
	for i := uint64(0); i < nblocks; i++ {
		h.writeData(i, mkBlock(0x33))
	}
	h.l.End()

	// The image holds the full log but untouched home blocks.
	assert.Equal(t, uint64(nblocks), ReadHdr(h.fs).Count)
	for i := uint64(0); i < nblocks; i++ {
		assert.Equal(t, mkBlock(0), h.onDisk(i))
	}

	h.reboot()

	assert.Equal(t, uint64(0), ReadHdr(h.fs).Count)
	for i := uint64(0); i < nblocks; i++ {
		assert.Equal(t, mkBlock(0x33), h.onDisk(i))
	}
}

// Crash before the commit point: the staged slots are unreferenced
// garbage and the transaction is simply lost.
func TestCrashBeforeCommitPointLosesTransaction(t *testing.T) {
	h := mkCrashHarness()

	h.cd.arm(1) // one staged slot only
	h.l.Begin()
	h.writeData(0, mkBlock(0x44))
	h.writeData(1, mkBlock(0x55))
	h.l.End()

	h.reboot()

	assert.Equal(t, uint64(0), ReadHdr(h.fs).Count)
	assert.Equal(t, mkBlock(0), h.onDisk(0))
	assert.Equal(t, mkBlock(0), h.onDisk(1))
}
