package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jonesrussell/godash/cmd"
	"github.com/jonesrussell/godash/internal/scheduler"
)

// exitBusy is returned when another scheduler instance holds the lease.
const exitBusy = 2

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			os.Exit(exitBusy)
		}
		os.Exit(1)
	}
}
