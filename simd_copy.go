package kvdrive

// simdCopy bulk-copies src into dst, favoring the chunk width the current
// architecture's vector unit handles best (see simd_copy_amd64.go,
// simd_copy_arm64.go, simd_copy_generic.go). len(dst) must be >= len(src).
//
// Go's runtime memmove is already vectorized on every architecture we
// dispatch for; simdWordCopy in those files exists to mirror the chunked-copy shape
// of the original engine's architecture-specific kernels rather than to
// out-perform the runtime. It falls back to the builtin copy for any
// remainder shorter than a full chunk.
func simdCopy(dst, src []byte) int {
	return simdWordCopy(dst, src)
}
