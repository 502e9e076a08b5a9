package arena

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"syscall"
)

// shmDir is where the named region lives. Every participant on a host
// resolves the object name "qads_<name>" under it the same way a POSIX
// shared memory object would — /dev/shm is Linux's tmpfs mount for
// exactly that purpose, the same directory this codebase's earlier
// ring-buffer and matrix mmap helpers used.
const shmDir = "/dev/shm"

// validName matches the allowed OS object name character set.
var validName = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,240}$`)

func objectPath(name string) string {
	return shmDir + "/qads_" + name
}

// region owns one process's mapping of an arena's OS object. It is not
// safe for concurrent use from multiple goroutines beyond what the
// arena-level mutex already serializes.
type region struct {
	file *os.File
	data []byte
	path string
}

// createRegion allocates (or, if !exclusive, opens) the named OS shared
// memory object, truncates it to size bytes, and maps it read-write.
func createRegion(name string, size int64, exclusive bool) (*region, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}
	path := objectPath(name)

	flags := os.O_RDWR | os.O_CREATE
	if exclusive {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		switch {
		case exclusive && os.IsExist(err):
			return nil, ErrAlreadyExists
		case os.IsPermission(err):
			return nil, fmt.Errorf("arena: create %s: %w", path, ErrPermission)
		default:
			return nil, fmt.Errorf("arena: create %s: %w", path, err)
		}
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		if errors.Is(err, syscall.ENOSPC) {
			return nil, fmt.Errorf("arena: truncate %s: %w", path, ErrNoSpace)
		}
		return nil, fmt.Errorf("arena: truncate %s: %w", path, err)
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: mmap %s: %w", path, err)
	}

	return &region{file: f, data: data, path: path}, nil
}

// openRegion opens an existing OS object, reads magic, version and slot
// geometry from the first page, then remaps to the full arena size.
func openRegion(name string) (*region, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}
	path := objectPath(name)

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("arena: open %s: %w", path, ErrPermission)
		}
		return nil, fmt.Errorf("arena: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: stat %s: %w", path, err)
	}
	if info.Size() < pageSize {
		f.Close()
		return nil, ErrCorruptHeader
	}

	firstPage, err := syscall.Mmap(int(f.Fd()), 0, pageSize, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: mmap %s: %w", path, err)
	}

	h := headerAt(firstPage)
	geometryOK := h.Magic == magic && h.Version == layoutVersion
	slotCount, slotCapacity := h.SlotCount, h.SlotCapacity
	syscall.Munmap(firstPage)

	if !geometryOK {
		f.Close()
		return nil, ErrVersionMismatch
	}
	if slotCount == 0 || slotCount > maxSlotCount || slotCapacity < minSlotCapacity {
		f.Close()
		return nil, ErrCorruptHeader
	}

	total := totalSize(slotCount, slotCapacity)
	if info.Size() < total {
		f.Close()
		return nil, ErrCorruptHeader
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(total), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: remap %s: %w", path, err)
	}

	return &region{file: f, data: data, path: path}, nil
}

// closeRegion unmaps the mapping and closes the descriptor, optionally
// unlinking the backing OS object.
func closeRegion(r *region, unlink bool) error {
	err := syscall.Munmap(r.data)

	if closeErr := r.file.Close(); err == nil {
		err = closeErr
	}

	if unlink {
		if rmErr := os.Remove(r.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}

	return err
}
