package fslog

import (
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/super"
)

// hdr mirrors the on-disk log header: the number of valid slots followed
// by the home address of every slot. len(addrs) is always the full slot
// count of the log region; entries at index >= count are ignored but the
// encoding is byte-for-byte stable, since slot index doubles as the
// payload block offset.
type hdr struct {
	count uint64
	addrs []common.Bnum
}

func (h *hdr) encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(h.count)
	enc.PutInts(h.addrs)
	return enc.Finish()
}

func decodeHdr(blk disk.Block, nslots uint64) *hdr {
	dec := marshal.NewDec(blk)
	count := dec.GetInt()
	addrs := dec.GetInts(nslots)
	if count > nslots {
		panic("fslog: header count exceeds log size")
	}
	return &hdr{count: count, addrs: addrs}
}

// Hdr is the decoded on-disk log header, for inspection tools.
type Hdr struct {
	Count uint64
	Addrs []common.Bnum
}

// ReadHdr decodes the log header straight from the device, bypassing any
// cache. The journal itself goes through the buffer cache; this is for
// offline tooling.
func ReadHdr(fs *super.FsSuper) *Hdr {
	h := decodeHdr(fs.Disk.Read(uint64(fs.LogHdr())), fs.NLogSlots())
	return &Hdr{Count: h.count, Addrs: h.addrs[:h.count]}
}
