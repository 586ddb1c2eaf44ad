package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
)

// iconBytes builds a 16x16 tray icon at runtime as a PNG-compressed ICO so
// no binary asset has to ship with the source. Windows accepts PNG payloads
// inside ICO containers since Vista.
func iconBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))

	frame := color.RGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF}
	text := color.RGBA{R: 0xF0, G: 0xF0, B: 0xF0, A: 0xFF}

	// Dashed selection frame.
	for i := 1; i < 15; i++ {
		if i%3 != 0 {
			img.SetRGBA(i, 1, frame)
			img.SetRGBA(i, 14, frame)
			img.SetRGBA(1, i, frame)
			img.SetRGBA(14, i, frame)
		}
	}
	// Two "text lines" inside the frame.
	for x := 4; x <= 11; x++ {
		img.SetRGBA(x, 6, text)
	}
	for x := 4; x <= 9; x++ {
		img.SetRGBA(x, 10, text)
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil
	}
	return wrapICO(pngBuf.Bytes())
}

// wrapICO wraps one PNG image into a single-entry ICO container.
func wrapICO(pngData []byte) []byte {
	var buf bytes.Buffer

	// ICONDIR: reserved, type 1 (icon), one entry.
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))

	// ICONDIRENTRY for a 16x16 32-bit image at offset 22.
	buf.WriteByte(16) // width
	buf.WriteByte(16) // height
	buf.WriteByte(0)  // colors in palette
	buf.WriteByte(0)  // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // planes
	binary.Write(&buf, binary.LittleEndian, uint16(32)) // bit depth
	binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	binary.Write(&buf, binary.LittleEndian, uint32(22))

	buf.Write(pngData)
	return buf.Bytes()
}
