//go:build ignore

// crash rewrites a datafile with many documents so that a test can kill it
// in the middle of the crash-safe write.
package main

import (
	"fmt"
	"os"

	"github.com/vinicius-lino-figueiredo/gedbpromise/internal/engine/storage"
)

func main() {
	total := 50000

	lines := make([][]byte, total)
	for n := range total {
		lines[n] = fmt.Appendf(nil, `{"_id":"%d","v":%q}`, n, os.Args[1])
	}

	if err := storage.NewStorage().CrashSafeWriteFileLines(os.Args[2], lines, 0755, 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
