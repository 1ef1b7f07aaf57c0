// Package super describes the on-disk layout: where the log region lives
// and how big it is. The superblock is block 0, written once at format
// time; the journal never modifies it.
package super

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-fslog/common"
)

const MAGIC uint64 = 0x10203040

// FsSuper holds the disk geometry. LogSize counts the header block plus
// the payload slots, so a log with n slots has LogSize n+1.
type FsSuper struct {
	Disk     disk.Disk
	Size     uint64
	LogStart common.Bnum
	LogSize  uint64
}

// MkFsSuper lays out a fresh disk: superblock at 0, log region right
// after it, data from DataStart() on.
func MkFsSuper(d disk.Disk) *FsSuper {
	fs := &FsSuper{
		Disk:     d,
		Size:     d.Size(),
		LogStart: 1,
		LogSize:  common.LOGBLOCKS + 1,
	}
	if err := fs.validate(); err != nil {
		panic(err)
	}
	return fs
}

func (fs *FsSuper) validate() error {
	if fs.LogSize < 2 {
		return fmt.Errorf("super: log of size %d has no payload slots", fs.LogSize)
	}
	if fs.LogSize-1 > common.HDRADDRS {
		return fmt.Errorf("super: %d slots do not fit the header block", fs.LogSize-1)
	}
	if uint64(fs.LogStart)+fs.LogSize > fs.Size {
		return fmt.Errorf("super: log extent [%d,%d) outside disk of %d blocks",
			fs.LogStart, uint64(fs.LogStart)+fs.LogSize, fs.Size)
	}
	return nil
}

// NLogSlots is the number of payload slots (the admission capacity N).
func (fs *FsSuper) NLogSlots() uint64 {
	return fs.LogSize - 1
}

func (fs *FsSuper) LogHdr() common.Bnum {
	return fs.LogStart
}

// LogSlot maps a slot index to its block on the device.
func (fs *FsSuper) LogSlot(i uint64) common.Bnum {
	return fs.LogStart + 1 + i
}

func (fs *FsSuper) DataStart() common.Bnum {
	return fs.LogStart + common.Bnum(fs.LogSize)
}

func (fs *FsSuper) encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(MAGIC)
	enc.PutInt(fs.Size)
	enc.PutInt(uint64(fs.LogStart))
	enc.PutInt(fs.LogSize)
	return enc.Finish()
}

// Flush durably writes the superblock. Format-time only.
func (fs *FsSuper) Flush() {
	fs.Disk.Write(0, fs.encode())
	fs.Disk.Barrier()
}

// LoadFsSuper reads and validates the superblock of a formatted disk.
func LoadFsSuper(d disk.Disk) (*FsSuper, error) {
	dec := marshal.NewDec(d.Read(0))
	if magic := dec.GetInt(); magic != MAGIC {
		return nil, fmt.Errorf("super: bad magic %#x", magic)
	}
	fs := &FsSuper{
		Disk:     d,
		Size:     dec.GetInt(),
		LogStart: dec.GetInt(),
		LogSize:  dec.GetInt(),
	}
	if fs.Size != d.Size() {
		return nil, fmt.Errorf("super: size %d does not match device %d",
			fs.Size, d.Size())
	}
	if err := fs.validate(); err != nil {
		return nil, err
	}
	return fs, nil
}
