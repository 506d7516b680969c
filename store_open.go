package kvdrive

import (
	"fmt"
	"os"
)

// Open opens the data file at opts.Path, creating it if it does not exist.
// Any torn suffix left by a previous crash is detected and discarded before
// Open returns - see recoverValidChain.
func Open(opts Options) (*Store, error) {
	return open(opts, os.O_RDWR|os.O_CREATE)
}

// OpenExisting is like Open but fails with [ErrNotFound] if opts.Path does
// not already exist.
func OpenExisting(opts Options) (*Store, error) {
	if err := verifyFileExists(opts.Path); err != nil {
		return nil, err
	}

	return open(opts, os.O_RDWR)
}

func open(opts Options, flags int) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: Options.Path is required", ErrInvalidInput)
	}

	file, err := os.OpenFile(opts.Path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", opts.Path, err)
	}

	store, err := openFromFile(opts, file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return store, nil
}

// openFromFile performs recovery and index construction against an already
// opened file handle, truncating away any torn suffix it finds.
func openFromFile(opts Options, file *os.File) (*Store, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", opts.Path, err)
	}

	fileLen := info.Size()

	region, err := mapRegion(int(file.Fd()), int(fileLen))
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", opts.Path, err)
	}

	validTail := recoverValidChain(region, uint64(fileLen))

	if validTail < uint64(fileLen) {
		region.release() // drop the creator reference to unmap before truncating

		if err := file.Truncate(int64(validTail)); err != nil {
			return nil, fmt.Errorf("%w: truncating torn tail of %s: %v", ErrCorrupt, opts.Path, err)
		}

		if err := file.Sync(); err != nil {
			return nil, fmt.Errorf("%w: syncing truncated %s: %v", ErrCorrupt, opts.Path, err)
		}

		region, err = mapRegion(int(file.Fd()), int(validTail))
		if err != nil {
			return nil, fmt.Errorf("re-mmap %s after recovery: %w", opts.Path, err)
		}
	}

	// mapRegion's creator reference becomes the store's own "current
	// pointer" reference from here on.
	store := &Store{
		path:   opts.Path,
		opts:   opts,
		file:   file,
		region: region,
		index:  buildKeyIndex(region, validTail),
	}
	store.tailOffset.Store(validTail)

	return store, nil
}

// recoverValidChain searches for the largest offset T <= fileLen such that a
// backward walk of trailers starting at T reaches prev_offset == 0 with
// every intermediate trailer well-formed (offsets in range, room for at
// least one payload byte after the pre-pad, and total traversed bytes <=
// fileLen). It returns 0 if no such T exists - i.e. the file has no valid
// entry at all.
//
// This mirrors the original engine's own recovery search: candidate tail
// offsets are tried one byte at a time, from fileLen down to METADATA_SIZE,
// because a torn write can leave the true chain ending at any byte, not just
// at a multiple of the entry size.
func recoverValidChain(region *mmapRegion, fileLen uint64) uint64 {
	if fileLen < MetadataSize {
		return 0
	}

	data := region.data

	for cursor := fileLen; cursor >= MetadataSize; cursor-- {
		metadataOffset := cursor - MetadataSize
		trailer := deserializeMetadata(data[metadataOffset : metadataOffset+MetadataSize])

		entryStart := trailer.prevOffset
		if entryStart >= metadataOffset || entryStart+prePadLen(entryStart) >= metadataOffset {
			continue // out of range, or no room for a non-empty payload
		}

		totalSize := (metadataOffset - entryStart) + MetadataSize
		backCursor := entryStart
		chainValid := true

		for backCursor != 0 {
			if backCursor < MetadataSize {
				chainValid = false
				break
			}

			prevMetadataOffset := backCursor - MetadataSize
			prevTrailer := deserializeMetadata(data[prevMetadataOffset : prevMetadataOffset+MetadataSize])

			if prevTrailer.prevOffset >= prevMetadataOffset ||
				prevTrailer.prevOffset+prePadLen(prevTrailer.prevOffset) >= prevMetadataOffset {
				chainValid = false
				break
			}

			entrySize := prevMetadataOffset - prevTrailer.prevOffset
			totalSize += entrySize + MetadataSize

			backCursor = prevTrailer.prevOffset
		}

		if chainValid && backCursor == 0 && totalSize <= fileLen {
			return metadataOffset + MetadataSize
		}
	}

	return 0
}

// remapAfterAppend must be called, under the writer lock, after new bytes
// have been flushed to the file. It builds a fresh mapping covering the new
// file length and publishes it, in that order, so that a reader can never
// observe tailOffset advance before the bytes it describes are mapped.
func (s *Store) remapAfterAppend(newLen uint64) error {
	region, err := mapRegion(int(s.file.Fd()), int(newLen))
	if err != nil {
		return fmt.Errorf("remapping %s: %w", s.path, err)
	}

	// mapRegion's creator reference becomes the store's current-pointer
	// reference; swapRegion releases the previous region's.
	s.swapRegion(region)
	s.tailOffset.Store(newLen)

	return nil
}
