package bitstream

import "unsafe"

// unsafeBytes reinterprets a slice of 32-bit words as bytes without
// copying, the same pattern driver/ili9488 uses to hand its frame
// buffer's address to DMA.
func unsafeBytes(words []uint32) []byte {
	if len(words) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*4)
}
