// simrunner drives externally computed simulation jobs to completion,
// persisting their output to a remote data store.
package main

import (
	"log/slog"
	"os"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	Execute()
}
