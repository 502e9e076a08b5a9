// Command qads-writer publishes a stream of synthetic tick batches into
// a shared-memory arena, for exercising and demonstrating the arena/table
// transport end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/yutiansut/qadataswap-go/arena"
	"github.com/yutiansut/qadataswap-go/cmd/internal/democonfig"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "qads-writer.toml", "path to TOML config")
	envPath := flag.String("env", ".env", "path to .env overrides (optional)")
	rows := flag.Int("rows-per-batch", 64, "rows to generate per published batch")
	interval := flag.Duration("interval", 50*time.Millisecond, "delay between published batches")
	flag.Parse()

	cfg, err := democonfig.Load(*cfgPath, *envPath)
	if err != nil {
		log.Printf("qads-writer: load config: %v", err)
		return 3
	}
	if cfg.Arena.Name == "" {
		log.Printf("qads-writer: config missing [arena].name")
		return 3
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w, err := arena.OpenWriter(arena.Config{
		Name:           cfg.Arena.Name,
		SizeBytes:      cfg.Arena.SizeBytes,
		SlotCount:      cfg.Arena.SlotCount,
		Timeout:        cfg.Timeout(),
		VerifyChecksum: cfg.Arena.VerifyChecksum,
	})
	if err != nil {
		log.Printf("qads-writer: open: %v", err)
		return 1
	}
	defer w.Close()
	log.Printf("qads-writer: publishing to /dev/shm/qads_%s", cfg.Arena.Name)

	schema := tickSchema()
	pool := memory.NewGoAllocator()
	var seq int64

	for {
		select {
		case <-ctx.Done():
			log.Printf("qads-writer: shutting down")
			return 0
		default:
		}

		rec := buildTickBatch(pool, schema, seq, *rows)
		seq += int64(*rows)

		err := w.Write(rec, time.Time{})
		rec.Release()

		switch {
		case err == nil:
		case errors.Is(err, arena.ErrOwnerDead):
			log.Printf("qads-writer: recovered arena from a dead participant")
		case errors.Is(err, arena.ErrTimeout):
			log.Printf("qads-writer: write timed out, no reader draining the ring")
			return 2
		case errors.Is(err, arena.ErrOversize):
			log.Printf("qads-writer: batch exceeds slot capacity: %v", err)
			return 4
		default:
			log.Printf("qads-writer: write: %v", err)
			return 1
		}

		select {
		case <-ctx.Done():
			log.Printf("qads-writer: shutting down")
			return 0
		case <-time.After(*interval):
		}
	}
}

func tickSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "seq", Type: arrow.PrimitiveTypes.Int64},
		{Name: "ts_nanos", Type: arrow.PrimitiveTypes.Int64},
		{Name: "price", Type: arrow.PrimitiveTypes.Float64},
		{Name: "qty", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
}

func buildTickBatch(pool memory.Allocator, schema *arrow.Schema, startSeq int64, rows int) arrow.Record {
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	seqB := b.Field(0).(*array.Int64Builder)
	tsB := b.Field(1).(*array.Int64Builder)
	priceB := b.Field(2).(*array.Float64Builder)
	qtyB := b.Field(3).(*array.Float64Builder)

	now := time.Now().UnixNano()
	for i := 0; i < rows; i++ {
		seqB.Append(startSeq + int64(i))
		tsB.Append(now + int64(i))
		priceB.Append(100.0 + float64(i%7))
		qtyB.Append(1.0 + float64(i%3))
	}

	return b.NewRecord()
}
