// Dbinspect lists, dumps and purges the records of a store.
package main

import (
	"fmt"
	"os"

	"github.com/safing/dbdriver/info"
	"github.com/safing/dbdriver/log"
)

func main() {
	info.Set("dbinspect", "")

	err := newRootCommand().Execute()
	log.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
