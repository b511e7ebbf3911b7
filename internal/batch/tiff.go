package batch

import (
	"bytes"
	"encoding/binary"
	"image"
	"os"
)

// TIFF tag and type constants for the fields writeRGBTIFF emits.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279

	typeShort = 3
	typeLong  = 4
)

// writeRGBTIFF encodes img as an uncompressed little-endian baseline TIFF
// with three samples per pixel, dropping the alpha bytes. The x/image/tiff
// encoder has no RGB-without-alpha path (NRGBA input always produces a
// four-sample file with an unassociated-alpha ExtraSamples tag), so opaque
// sources are written through this instead to keep their color mode.
//
// Layout: 8-byte header, pixel strip, IFD, BitsPerSample values.
func writeRGBTIFF(path string, img *image.NRGBA) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	pix := make([]byte, 0, w*h*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := img.PixOffset(x, y)
			pix = append(pix, img.Pix[off], img.Pix[off+1], img.Pix[off+2])
		}
	}

	var buf bytes.Buffer
	le := binary.LittleEndian
	write := func(v any) {
		// binary.Write on a bytes.Buffer with fixed-size values cannot fail.
		binary.Write(&buf, le, v)
	}

	const headerLen = 8
	const entryCount = 9
	ifdOffset := uint32(headerLen + len(pix))
	bitsOffset := ifdOffset + 2 + entryCount*12 + 4

	buf.WriteString("II")
	write(uint16(42))
	write(ifdOffset)
	buf.Write(pix)

	// Entries must appear in ascending tag order.
	longEntry := func(tag uint16, value uint32) {
		write(tag)
		write(uint16(typeLong))
		write(uint32(1))
		write(value)
	}
	shortEntry := func(tag, value uint16) {
		write(tag)
		write(uint16(typeShort))
		write(uint32(1))
		write(value)
		write(uint16(0)) // value field padding
	}

	write(uint16(entryCount))
	longEntry(tagImageWidth, uint32(w))
	longEntry(tagImageLength, uint32(h))
	write(uint16(tagBitsPerSample))
	write(uint16(typeShort))
	write(uint32(3))
	write(bitsOffset)
	shortEntry(tagCompression, 1) // no compression
	shortEntry(tagPhotometric, 2) // RGB
	longEntry(tagStripOffsets, headerLen)
	shortEntry(tagSamplesPerPixel, 3)
	longEntry(tagRowsPerStrip, uint32(h))
	longEntry(tagStripByteCounts, uint32(len(pix)))
	write(uint32(0)) // no next IFD

	write(uint16(8))
	write(uint16(8))
	write(uint16(8))

	return os.WriteFile(path, buf.Bytes(), 0644)
}
