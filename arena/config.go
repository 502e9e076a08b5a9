package arena

import "time"

// Config is the endpoint configuration recognized by Writer and Reader.
// Not every field applies to every endpoint; unused fields are ignored
// (e.g. WaitForWriter only matters to a Reader).
type Config struct {
	// Name is the OS object name suffix; required.
	Name string

	// SizeBytes is the total mapping size, rounded up to a page.
	// Defaults to 100 MiB if zero.
	SizeBytes int64

	// SlotCount is N, the number of ring slots. Defaults to 3 if zero.
	SlotCount int

	// Timeout is the default wait deadline for Write/Read when the
	// caller does not pass an explicit deadline. Zero means infinite.
	Timeout time.Duration

	// CreateIfMissing makes a Writer's Open create the arena if absent.
	// Defaults to true.
	CreateIfMissing *bool

	// WaitForWriter makes a Reader's Open poll until the arena appears
	// instead of failing NotFound immediately. Defaults to false.
	WaitForWriter bool

	// UnlinkOnClose marks the OS object for removal when this endpoint
	// closes; it is removed once the last attached endpoint closes,
	// whichever endpoint that is. Defaults to true for writers, false for
	// readers.
	UnlinkOnClose *bool

	// VerifyChecksum enables CRC-32C verification on read. Defaults to
	// false.
	VerifyChecksum bool
}

const (
	defaultSizeBytes = 100 * 1024 * 1024
	defaultSlotCount = 3

	// waitForWriterPollInterval is the bounded poll rate used by a
	// Reader configured with WaitForWriter.
	waitForWriterPollInterval = 10 * time.Millisecond
)

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// normalized returns a copy of c with defaults applied and validates the
// result against the arena's geometry bounds.
func (c Config) normalized(createIfMissingDefault, unlinkDefault bool) (Config, error) {
	if c.Name == "" {
		return c, ErrInvalidName
	}
	if c.SizeBytes == 0 {
		c.SizeBytes = defaultSizeBytes
	}
	if c.SlotCount == 0 {
		c.SlotCount = defaultSlotCount
	}
	if c.SlotCount < 1 || c.SlotCount > maxSlotCount {
		return c, ErrInvalidConfig
	}

	slotCapacity := deriveSlotCapacity(c.SizeBytes, c.SlotCount)
	if slotCapacity < minSlotCapacity {
		return c, ErrInvalidConfig
	}

	if c.CreateIfMissing == nil {
		v := createIfMissingDefault
		c.CreateIfMissing = &v
	}
	if c.UnlinkOnClose == nil {
		v := unlinkDefault
		c.UnlinkOnClose = &v
	}

	return c, nil
}

// deriveSlotCapacity splits a caller-supplied total size into slotCount
// page-aligned, equally sized slots.
func deriveSlotCapacity(sizeBytes int64, slotCount int) uint64 {
	avail := sizeBytes - headerSize
	if avail < 0 {
		return 0
	}
	per := avail / int64(slotCount)
	per = per - (per % pageSize)
	if per < 0 {
		return 0
	}
	return uint64(per)
}
