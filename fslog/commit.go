package fslog

import (
	"github.com/mit-pdos/go-fslog/util"
)

// The commit path reads l.count and l.addrs without holding l.mu. That is
// safe: commit only runs with committing=true and zero outstanding
// operations, and recovery runs before any operation is admitted, so no
// Write can race with either.

func (l *Log) readHdr() *hdr {
	b := l.bc.Bread(l.fs.LogHdr())
	h := decodeHdr(b.Data, l.fs.NLogSlots())
	l.bc.Brelse(b)
	return h
}

// writeHdr durably writes the in-memory header mirror. When count moves
// from 0 this is the commit point; when it moves back to 0 it erases the
// transaction.
func (l *Log) writeHdr() {
	b := l.bc.Bread(l.fs.LogHdr())
	h := &hdr{count: l.count, addrs: l.addrs}
	copy(b.Data, h.encode())
	l.bc.Bwrite(b)
	l.bc.Brelse(b)
}

// stage copies each logged block's current cached content into its
// payload slot and durably writes the slot. Nothing here is visible to
// recovery until the header is written.
func (l *Log) stage() {
	for i := uint64(0); i < l.count; i++ {
		from := l.bc.Bread(l.addrs[i])
		to := l.bc.Bread(l.fs.LogSlot(i))
		copy(to.Data, from.Data)
		l.bc.Bwrite(to)
		l.bc.Brelse(to)
		l.bc.Brelse(from)
		util.DPrintf(5, "fslog: stage %d to slot %d", l.addrs[i], i)
	}
}

// install copies each payload slot to its home block and durably writes
// it. During a live commit this also releases the pin taken at Write
// time; recovery has no pins to release.
func (l *Log) install(recovering bool) {
	for i := uint64(0); i < l.count; i++ {
		from := l.bc.Bread(l.fs.LogSlot(i))
		to := l.bc.Bread(l.addrs[i])
		copy(to.Data, from.Data)
		l.bc.Bwrite(to)
		if !recovering {
			l.bc.Unpin(to)
		}
		l.bc.Brelse(to)
		l.bc.Brelse(from)
		util.DPrintf(5, "fslog: install slot %d to %d", i, l.addrs[i])
	}
}

// commit makes the pending transaction durable: stage the blocks into the
// log, write the header (the commit point), install the blocks to their
// home locations, then erase the header. A crash before the header write
// loses the transaction; a crash after it is replayed by recovery.
func (l *Log) commit() {
	if l.count == 0 {
		return
	}
	util.DPrintf(1, "fslog: commit %d blocks", l.count)
	l.stage()
	l.writeHdr()
	l.install(false)
	l.count = 0
	l.writeHdr()
}

// recover replays a committed-but-uninstalled transaction left behind by
// a crash, then erases it. Installing identical content twice is a no-op,
// so recovering more than once is harmless.
func (l *Log) recover() {
	h := l.readHdr()
	l.count = h.count
	copy(l.addrs, h.addrs)
	if l.count > 0 {
		util.DPrintf(1, "fslog: recover %d blocks", l.count)
		l.install(true)
	}
	l.count = 0
	l.writeHdr()
}
