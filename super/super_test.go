package super

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-fslog/common"
)

func TestLayout(t *testing.T) {
	d := disk.NewMemDisk(1000)
	fs := MkFsSuper(d)
	assert.Equal(t, common.LOGBLOCKS, fs.NLogSlots())
	assert.Equal(t, fs.LogStart, fs.LogHdr())
	assert.Equal(t, fs.LogStart+1, fs.LogSlot(0))
	assert.Equal(t, fs.LogStart+common.Bnum(fs.LogSize), fs.DataStart())
	assert.Equal(t, fs.LogSlot(fs.NLogSlots()-1)+1, fs.DataStart(),
		"last slot must sit just below the data region")
}

func TestFlushLoadRoundTrip(t *testing.T) {
	d := disk.NewMemDisk(1000)
	fs := MkFsSuper(d)
	fs.Flush()

	got, err := LoadFsSuper(d)
	assert.NoError(t, err)
	assert.Equal(t, fs.Size, got.Size)
	assert.Equal(t, fs.LogStart, got.LogStart)
	assert.Equal(t, fs.LogSize, got.LogSize)
}

func TestLoadRejectsUnformatted(t *testing.T) {
	d := disk.NewMemDisk(1000)
	_, err := LoadFsSuper(d)
	assert.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	d := disk.NewMemDisk(1000)

	fs := &FsSuper{Disk: d, Size: 1000, LogStart: 1, LogSize: 1}
	assert.Error(t, fs.validate(), "a log needs at least one payload slot")

	fs = &FsSuper{Disk: d, Size: 1000, LogStart: 1, LogSize: common.HDRADDRS + 2}
	assert.Error(t, fs.validate(), "slots must fit the header block")

	fs = &FsSuper{Disk: d, Size: 10, LogStart: 1, LogSize: 31}
	assert.Error(t, fs.validate(), "log extent must fit the device")
}
