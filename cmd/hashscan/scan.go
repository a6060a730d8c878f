package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sydlexius/hashscan/internal/queue"
)

// digestList collects repeated --digest flags.
type digestList []string

func (d *digestList) String() string { return strings.Join(*d, ",") }

func (d *digestList) Set(v string) error {
	*d = append(*d, strings.ToLower(strings.TrimSpace(v)))
	return nil
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	var digests digestList
	fs.Var(&digests, "digest", "look up a known SHA-256 `HEX` digest without a file (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 && len(digests) == 0 {
		return fmt.Errorf("scan: no files or digests given\n\n%s", usage)
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	hashErrors := enqueueAll(a.queue, a.logger, digests, fs.Args())
	if a.queue.IsEmpty() {
		return errIncomplete
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum := a.runner.Run(ctx, a.queue)
	a.bus.Stop()
	a.renderer.PrintSummary(sum)

	if hashErrors > 0 || !sum.AllCompleted() {
		return errIncomplete
	}
	return nil
}

// enqueueAll adds digest-only items and hashes files. Files that cannot be
// hashed are reported and counted but do not stop the others.
func enqueueAll(q *queue.Queue, logger *slog.Logger, digests, paths []string) int {
	for _, d := range digests {
		q.Add(queue.NewItem(d, d))
	}
	failed := 0
	for _, p := range paths {
		item, err := q.Enqueue(p)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%v\n", err)
			logger.Warn("enqueueing file", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("file queued", slog.String("item_id", item.ID.String()), slog.String("file", item.DisplayText()))
	}
	return failed
}
