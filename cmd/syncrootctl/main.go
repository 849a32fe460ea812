// syncrootctl registers and inspects cloud sync roots.
//
// Usage:
//
//	syncrootctl register --name Seki --account acct-1 --dir /home/u/SyncRoot --policy ondemand
//	syncrootctl status --dir /home/u/SyncRoot
//	syncrootctl run --name Seki --account acct-1 --dir /home/u/SyncRoot
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fruitsalade/syncroot/internal/logging"
)

func main() {
	if isWindowsService() {
		if err := runAsService(os.Args[1:]); err != nil {
			logging.L().Error("service failed", logging.Err(err))
			logging.Sync()
			os.Exit(exitFailure)
		}
		return
	}

	err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
