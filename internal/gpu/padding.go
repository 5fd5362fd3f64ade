package gpu

// copyPitchAlignment is the row pitch alignment required for
// texture-to-buffer copies (COPY_BYTES_PER_ROW_ALIGNMENT).
const copyPitchAlignment = 256

// bytesPerPixel of the RGBA8 render target.
const bytesPerPixel = 4

// UnpaddedBytesPerRow returns the tight row size of an RGBA8 image.
func UnpaddedBytesPerRow(width uint32) uint32 {
	return width * bytesPerPixel
}

// PaddedBytesPerRow returns the row size of an RGBA8 image rounded up to
// the copy pitch alignment.
func PaddedBytesPerRow(width uint32) uint32 {
	bpr := UnpaddedBytesPerRow(width)
	return (bpr + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// StripRowPadding copies the first 4*width bytes of every padded row of src
// into a new tightly packed buffer of exactly 4*width*height bytes.
// Rows keep their top-to-bottom order. src must hold at least
// PaddedBytesPerRow(width)*height bytes.
func StripRowPadding(src []byte, width, height uint32) []byte {
	tight := int(UnpaddedBytesPerRow(width))
	padded := int(PaddedBytesPerRow(width))
	out := make([]byte, tight*int(height))
	if tight == padded {
		copy(out, src[:len(out)])
		return out
	}
	for row := 0; row < int(height); row++ {
		srcOff := row * padded
		dstOff := row * tight
		copy(out[dstOff:dstOff+tight], src[srcOff:srcOff+tight])
	}
	return out
}

// AddRowPadding is the inverse of StripRowPadding: it lays tight rows out
// with the padded pitch and zero-fills the padding bytes.
func AddRowPadding(src []byte, width, height uint32) []byte {
	tight := int(UnpaddedBytesPerRow(width))
	padded := int(PaddedBytesPerRow(width))
	out := make([]byte, padded*int(height))
	for row := 0; row < int(height); row++ {
		copy(out[row*padded:row*padded+tight], src[row*tight:row*tight+tight])
	}
	return out
}
