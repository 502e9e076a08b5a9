package arena

import "errors"

// Error kinds surfaced to callers, per the transport's error handling design.
// These are sentinels: callers compare with errors.Is, never on message text.
var (
	// ErrNotFound is returned when an arena's backing OS object does not exist.
	ErrNotFound = errors.New("arena: not found")

	// ErrAlreadyExists is returned by createRegion with exclusive set when
	// the named region already exists.
	ErrAlreadyExists = errors.New("arena: already exists")

	// ErrVersionMismatch is returned when an attached arena's magic or
	// version field does not match this implementation's expectations.
	ErrVersionMismatch = errors.New("arena: version mismatch")

	// ErrCorruptHeader is returned when an arena's header fails basic
	// sanity checks (geometry, bounds) beyond magic/version.
	ErrCorruptHeader = errors.New("arena: corrupt header")

	// ErrAlreadyWriter is returned by Open when a writer is already
	// attached to the arena.
	ErrAlreadyWriter = errors.New("arena: writer already attached")

	// ErrBufferFull is the internal slot-ring condition signalled when no
	// slot is free; Write surfaces it to callers as ErrTimeout once the
	// deadline is reached.
	ErrBufferFull = errors.New("arena: buffer full")

	// ErrTimeout is returned when a deadline elapses while waiting for a
	// free slot (Write) or for data (Read).
	ErrTimeout = errors.New("arena: timeout")

	// ErrNoData is the internal slot-ring condition for an empty ring;
	// Read surfaces it to callers as either a blocking wait, ErrTimeout,
	// or a nil batch (writer gone), never as ErrNoData directly.
	ErrNoData = errors.New("arena: no data")

	// ErrClosed is returned by Read after the Reader has been closed, and
	// by Write after the Writer has been closed. A writer that has gone
	// with the ring drained is reported by Read as (nil, nil) instead.
	ErrClosed = errors.New("arena: closed")

	// ErrOversize is returned by Write when the encoded frame exceeds the
	// slot's payload capacity.
	ErrOversize = errors.New("arena: frame exceeds slot capacity")

	// ErrCorrupt is returned by Read when CRC-32C verification is enabled
	// and the stored checksum does not match the payload, or when framing
	// itself is malformed.
	ErrCorrupt = errors.New("arena: corrupt frame")

	// ErrOwnerDead is returned after the mutex's robust-recovery
	// path steals a lock from a dead owner. It is a warning, not a fatal
	// condition: the caller already holds a consistent, repaired lock.
	ErrOwnerDead = errors.New("arena: recovered from dead owner")

	// ErrUnrecoverable is returned when robust-mutex recovery itself fails
	// (e.g. the header is inconsistent even after repair).
	ErrUnrecoverable = errors.New("arena: unrecoverable")

	// ErrInvalidName is returned for names that do not match the allowed
	// character set for the OS object name.
	ErrInvalidName = errors.New("arena: invalid name")

	// ErrInvalidConfig is returned by OpenWriter/OpenReader for out-of-range
	// geometry (slot_count, slot_capacity) or nonsensical options.
	ErrInvalidConfig = errors.New("arena: invalid config")

	// ErrPermission, ErrNoSpace, ErrInterrupted, and ErrInternal wrap the
	// underlying OS/IO failure kinds that are not otherwise distinguished
	// above.
	ErrPermission  = errors.New("arena: permission denied")
	ErrNoSpace     = errors.New("arena: no space left on device")
	ErrInterrupted = errors.New("arena: interrupted")
	ErrInternal    = errors.New("arena: internal error")
)
