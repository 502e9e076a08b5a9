// Command qads-reader attaches to a shared-memory arena and logs each
// batch it receives, for exercising and demonstrating the arena/table
// transport end to end. With -workers > 1 it runs several reader
// goroutines concurrently against the same arena, demonstrating the
// transport's work-stealing delivery: each published batch still lands
// on exactly one of them.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yutiansut/qadataswap-go/arena"
	"github.com/yutiansut/qadataswap-go/cmd/internal/democonfig"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "qads-reader.toml", "path to TOML config")
	envPath := flag.String("env", ".env", "path to .env overrides (optional)")
	workers := flag.Int("workers", 1, "number of concurrent reader goroutines competing for batches")
	flag.Parse()

	cfg, err := democonfig.Load(*cfgPath, *envPath)
	if err != nil {
		log.Printf("qads-reader: load config: %v", err)
		return 3
	}
	if cfg.Arena.Name == "" {
		log.Printf("qads-reader: config missing [arena].name")
		return 3
	}
	if *workers < 1 {
		log.Printf("qads-reader: -workers must be at least 1")
		return 3
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var batches, rows int64
	var exitCode atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *workers; i++ {
		id := i
		g.Go(func() error {
			return readWorker(gctx, cfg, id, &batches, &rows, &exitCode)
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("qads-reader: stopped: %v", err)
	}
	log.Printf("qads-reader: %d batches (%d rows) total across %d worker(s)", batches, rows, *workers)

	return int(exitCode.Load())
}

func readWorker(ctx context.Context, cfg *democonfig.Config, id int, batches, rows *int64, exitCode *atomic.Int32) error {
	r, err := arena.OpenReader(arena.Config{
		Name:           cfg.Arena.Name,
		SlotCount:      cfg.Arena.SlotCount,
		Timeout:        cfg.Timeout(),
		VerifyChecksum: cfg.Arena.VerifyChecksum,
		WaitForWriter:  cfg.Arena.WaitForWriter,
	})
	if err != nil {
		log.Printf("qads-reader[%d]: open: %v", id, err)
		exitCode.CompareAndSwap(0, 1)
		return err
	}
	defer r.Close()
	log.Printf("qads-reader[%d]: attached to /dev/shm/qads_%s", id, cfg.Arena.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		rec, err := r.Read(time.Time{})
		switch {
		case rec != nil:
			atomic.AddInt64(batches, 1)
			atomic.AddInt64(rows, rec.NumRows())
			rec.Release()
			if err != nil && errors.Is(err, arena.ErrOwnerDead) {
				log.Printf("qads-reader[%d]: recovered arena from a dead participant", id)
			}
			continue
		case err == nil:
			log.Printf("qads-reader[%d]: writer gone, ring drained", id)
			return nil
		case errors.Is(err, arena.ErrTimeout):
			log.Printf("qads-reader[%d]: read timed out waiting for data", id)
			exitCode.CompareAndSwap(0, 2)
			return err
		default:
			log.Printf("qads-reader[%d]: read: %v", id, err)
			exitCode.CompareAndSwap(0, 1)
			return err
		}
	}
}
