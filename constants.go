package kvdrive

// Fixed binary layout of the trailing metadata block written after every
// entry's payload. Little-endian throughout; no version byte, the format is
// frozen.
const (
	// MetadataSize is the fixed size, in bytes, of the trailer appended
	// after every entry's payload.
	MetadataSize = 20

	keyHashOffset    = 0
	keyHashEnd       = 8
	prevOffsetOffset = 8
	prevOffsetEnd    = 16
	checksumOffset   = 16
	checksumEnd      = 20
)

const (
	// PayloadAlignLog2 is the base-2 logarithm of PayloadAlignment.
	PayloadAlignLog2 = 6

	// PayloadAlignment is the byte boundary every payload is aligned to.
	// Because the mmap base is page-aligned and PayloadAlignment divides any
	// page size, a payload's file offset and its in-process address share
	// the same alignment.
	PayloadAlignment = 1 << PayloadAlignLog2

	// maxPrePad is the largest possible zero-pad inserted before a payload.
	maxPrePad = PayloadAlignment - 1
)

// TombstoneByte is the single payload byte that marks a key as logically
// deleted. Public write methods reject payloads equal to this single byte;
// internal delete paths write it deliberately.
const TombstoneByte = 0x00

// WriteStreamChunk is the chunk size used by [Store.WriteStream] when
// copying from the supplied reader to the data file.
const WriteStreamChunk = 64 * 1024
