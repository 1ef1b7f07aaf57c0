// Package filedisk is a disk.Disk backed by an ordinary file or block
// device, for running the journal against real storage.
package filedisk

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"
)

type Disk struct {
	fd        int
	numBlocks uint64
}

var _ disk.Disk = Disk{}

// New opens path as a numBlocks-block disk, creating and sizing a regular
// file as needed.
func New(path string, numBlocks uint64) (Disk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return Disk{}, fmt.Errorf("filedisk: open %s: %w", path, err)
	}
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return Disk{}, fmt.Errorf("filedisk: stat %s: %w", path, err)
	}
	if stat.Mode&unix.S_IFREG != 0 && uint64(stat.Size) != numBlocks*disk.BlockSize {
		if err := unix.Ftruncate(fd, int64(numBlocks*disk.BlockSize)); err != nil {
			unix.Close(fd)
			return Disk{}, fmt.Errorf("filedisk: size %s: %w", path, err)
		}
	}
	return Disk{fd: fd, numBlocks: numBlocks}, nil
}

// I/O failures below are unrecoverable for a journal (retrying a failed
// durable write risks silent corruption), so they panic rather than
// propagate.

func (d Disk) Read(a uint64) disk.Block {
	if a >= d.numBlocks {
		panic(fmt.Errorf("filedisk: out-of-bounds read at %d", a))
	}
	buf := make([]byte, disk.BlockSize)
	if _, err := unix.Pread(d.fd, buf, int64(a*disk.BlockSize)); err != nil {
		panic("filedisk: read failed: " + err.Error())
	}
	return buf
}

func (d Disk) Write(a uint64, v disk.Block) {
	if uint64(len(v)) != disk.BlockSize {
		panic(fmt.Errorf("filedisk: write of %d bytes is not a block", len(v)))
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("filedisk: out-of-bounds write at %d", a))
	}
	if _, err := unix.Pwrite(d.fd, v, int64(a*disk.BlockSize)); err != nil {
		panic("filedisk: write failed: " + err.Error())
	}
}

func (d Disk) Size() uint64 {
	return d.numBlocks
}

func (d Disk) Barrier() {
	if err := unix.Fsync(d.fd); err != nil {
		panic("filedisk: sync failed: " + err.Error())
	}
}

func (d Disk) Close() {
	if err := unix.Close(d.fd); err != nil {
		panic("filedisk: close failed: " + err.Error())
	}
}
