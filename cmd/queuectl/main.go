// Command queuectl enqueues shell commands and runs them on a pool of
// workers, retrying failures with exponential backoff and parking
// exhausted jobs in a dead letter queue.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
