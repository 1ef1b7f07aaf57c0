package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	// HDRMETA is the space in the log header used for the slot count.
	HDRMETA uint64 = 8
	// HDRADDRS is how many home addresses fit in one header block, and
	// therefore the largest number of payload slots a log region may have.
	HDRADDRS uint64 = (disk.BlockSize - HDRMETA) / 8

	// MAXOPBLOCKS is the most distinct blocks one operation may log; the
	// admission protocol reserves this much space per in-flight operation.
	MAXOPBLOCKS uint64 = 10

	// LOGBLOCKS is the default number of payload slots at format time.
	LOGBLOCKS uint64 = 3 * MAXOPBLOCKS
)

type Bnum = uint64

const NULLBNUM Bnum = 0
