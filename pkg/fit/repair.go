package fit

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"io"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// maxRepairPad bounds the filler appended to a truncated scan.
const maxRepairPad = 64 << 20

// repairJPEG pads a truncated baseline JPEG scan with zero bits and closes it with an EOI
// marker, so the decoder renders whatever rows were present and fills the rest. Streams that
// use restart intervals stay undecodable.
func repairJPEG(data []byte) ([]byte, bool) {
	if !bytes.HasPrefix(data, jpegSOI) || bytes.HasSuffix(data, jpegEOI) {
		return nil, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, false
	}
	// An all-zero bit run costs at most ~24 bytes per 8x8 block with the standard Huffman
	// tables; 32 per block and component leaves headroom for every remaining MCU.
	pad := (cfg.Width/8 + 1) * (cfg.Height/8 + 1) * 3 * 32
	if pad > maxRepairPad {
		pad = maxRepairPad
	}
	fixed := make([]byte, 0, len(data)+pad+len(jpegEOI))
	fixed = append(fixed, data...)
	fixed = append(fixed, make([]byte, pad)...)
	fixed = append(fixed, jpegEOI...)
	return fixed, true
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// repairPNG rebuilds a truncated non-interlaced PNG. The compressed pixel data that survived
// is inflated as far as it goes, missing rows are filled with white (palette index 0 for
// paletted images) and the result is written back with a single fresh IDAT and an IEND.
// Ancillary chunks ahead of the pixel data are kept as they are.
func repairPNG(data []byte) ([]byte, bool) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, false
	}
	var (
		head     []byte
		idat     []byte
		rowBytes int
		height   int
		fill     byte = 0xFF
	)
	rest := data[len(pngSignature):]
	for len(rest) >= 8 {
		n := int(binary.BigEndian.Uint32(rest[:4]))
		typ := string(rest[4:8])
		body := rest[8:]
		if typ == "IDAT" {
			idat = append(idat, body[:min(n, len(body))]...)
			if len(body) < n+4 {
				break
			}
			rest = body[n+4:]
			continue
		}
		if len(body) < n+4 {
			break
		}
		switch typ {
		case "IEND":
			// Intact stream, nothing to repair.
			return nil, false
		case "IHDR":
			if n < 13 {
				return nil, false
			}
			var ok bool
			if rowBytes, height, ok = pngGeometry(body[:13]); !ok {
				return nil, false
			}
			if body[9] == 3 {
				fill = 0
			}
		}
		if idat == nil {
			head = append(head, rest[:n+12]...)
		}
		rest = body[n+4:]
	}
	if rowBytes == 0 || len(idat) == 0 {
		return nil, false
	}

	// A truncated stream yields whatever was inflated before the error.
	zr, err := zlib.NewReader(bytes.NewReader(idat))
	if err != nil {
		return nil, false
	}
	want := rowBytes * height
	raw, _ := io.ReadAll(io.LimitReader(zr, int64(want)))
	raw = raw[:len(raw)/rowBytes*rowBytes]
	if len(raw) == 0 {
		return nil, false
	}
	blank := bytes.Repeat([]byte{fill}, rowBytes)
	blank[0] = 0 // filter: none
	for len(raw) < want {
		raw = append(raw, blank...)
	}

	var pixels bytes.Buffer
	zw := zlib.NewWriter(&pixels)
	if _, err := zw.Write(raw); err != nil {
		return nil, false
	}
	if err := zw.Close(); err != nil {
		return nil, false
	}

	out := append([]byte{}, pngSignature...)
	out = append(out, head...)
	out = appendPNGChunk(out, "IDAT", pixels.Bytes())
	out = appendPNGChunk(out, "IEND", nil)
	return out, true
}

// pngGeometry returns the filtered row length and the row count from an IHDR body.
// Interlaced images are not handled.
func pngGeometry(ihdr []byte) (rowBytes, height int, ok bool) {
	width := int(binary.BigEndian.Uint32(ihdr[0:4]))
	height = int(binary.BigEndian.Uint32(ihdr[4:8]))
	depth, colorType, interlace := int(ihdr[8]), ihdr[9], ihdr[12]

	channels := map[byte]int{0: 1, 2: 3, 3: 1, 4: 2, 6: 4}[colorType]
	if width <= 0 || height <= 0 || channels == 0 || interlace != 0 {
		return 0, 0, false
	}
	if width > 1<<16 || height > 1<<16 {
		return 0, 0, false
	}
	return (width*channels*depth+7)/8 + 1, height, true
}

func appendPNGChunk(out []byte, typ string, body []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
	out = append(out, typ...)
	out = append(out, body...)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(body)
	return binary.BigEndian.AppendUint32(out, crc.Sum32())
}
