// logdump prints the superblock and log header of a disk image, and can
// replay an interrupted commit offline with -recover.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-fslog/bio"
	"github.com/mit-pdos/go-fslog/filedisk"
	"github.com/mit-pdos/go-fslog/fslog"
	"github.com/mit-pdos/go-fslog/super"
)

func main() {
	var blocks = flag.Uint64("blocks", 0, "size of the image in blocks (0: use file size)")
	var doRecover = flag.Bool("recover", false, "replay any committed transaction")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <image>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	n := *blocks
	if n == 0 {
		fi, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logdump: %v\n", err)
			os.Exit(1)
		}
		n = uint64(fi.Size()) / disk.BlockSize
	}

	d, err := filedisk.New(path, n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logdump: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	fs, err := super.LoadFsSuper(d)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logdump: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("disk: %d blocks\n", fs.Size)
	fmt.Printf("log:  blocks [%d,%d), %d payload slots\n",
		fs.LogStart, uint64(fs.LogStart)+fs.LogSize, fs.NLogSlots())

	h := fslog.ReadHdr(fs)
	if h.Count == 0 {
		fmt.Printf("header: empty (no pending transaction)\n")
	} else {
		fmt.Printf("header: %d committed but uninstalled blocks\n", h.Count)
		for i, bn := range h.Addrs {
			fmt.Printf("  slot %d -> block %d\n", i, bn)
		}
	}

	if *doRecover {
		// MkLog replays the transaction above, if any, before returning.
		fslog.MkLog(fs, bio.MkCache(d, fs.LogSize))
		fmt.Printf("recovered: header now empty\n")
	}
}
