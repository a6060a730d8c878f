package main

import (
	"errors"
	"fmt"
	"os"
)

const usage = `usage:
  hashscan scan [--digest HEX]... FILE...
  hashscan watch DIR
  hashscan seal

Configuration is read from $HS_CONFIG_PATH (default hashscan.yaml) and
HS_* environment variables. In watch mode, items a batch could not finish
are retried every watch.retry_interval (0 disables) or with the next file.`

// errIncomplete means the command ran but some items were not completed.
var errIncomplete = errors.New("not every item completed")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = runScan(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "seal":
		err = runSeal()
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}

	switch {
	case err == nil:
	case errors.Is(err, errIncomplete):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("HS_CONFIG_PATH"); p != "" {
		return p
	}
	return "hashscan.yaml"
}
