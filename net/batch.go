package net

import (
	"encoding/binary"

	lz4 "github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"
)

// controlRecipientMarker is the all-zero 8-byte recipient prefix a control
// frame (turn-count announcement) starts with. Grounded on
// original_source/src/networking.rs's reserved control sentinel. The
// type registry assigns ids from 0, so a data frame for instance 0 of
// type 0 on machine 0 also starts with eight zero bytes; what tells the
// two apart is length: a control frame is exactly controlFrameLen (12)
// bytes, while a data frame is the 8-byte recipient prefix plus at least
// a class.FrameHeaderSize (16) byte header.
const controlRecipientMarker = uint64(0)

// encodeBatch concatenates frames as [u32 len][bytes]... into one
// websocket message payload, optionally lz4-compressed with a leading
// 1-byte flag (0 = raw, 1 = lz4), matching the wire-format addendum: the
// compression flag sits outside the frame stream itself so a peer can
// decide whether to decompress before it even looks at frame lengths.
func encodeBatch(frames [][]byte, compress bool) []byte {
	var body []byte
	for _, f := range frames {
		var hdr [4]byte
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(f)))
		body = append(body, hdr[:]...)
		body = append(body, f...)
	}
	if !compress {
		return append([]byte{0}, body...)
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(body)))
	var c lz4.Compressor
	n, err := c.CompressBlock(body, compressed)
	if err != nil || n == 0 {
		return append([]byte{0}, body...)
	}
	out := make([]byte, 0, 1+4+n)
	out = append(out, 1)
	var rawLen [4]byte
	binary.LittleEndian.PutUint32(rawLen[:], uint32(len(body)))
	out = append(out, rawLen[:]...)
	out = append(out, compressed[:n]...)
	return out
}

// decodeBatch reverses encodeBatch, returning the individual frames.
func decodeBatch(msg []byte) ([][]byte, error) {
	if len(msg) == 0 {
		return nil, nil
	}
	flag := msg[0]
	body := msg[1:]
	if flag == 1 {
		if len(body) < 4 {
			return nil, errors.New("net: truncated lz4 batch header")
		}
		rawLen := binary.LittleEndian.Uint32(body[:4])
		decompressed := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body[4:], decompressed)
		if err != nil {
			return nil, errors.Wrap(err, "net: lz4 decompress batch")
		}
		body = decompressed[:n]
	}
	var frames [][]byte
	off := 0
	for off < len(body) {
		if off+4 > len(body) {
			return nil, errors.New("net: truncated batch frame length")
		}
		n := binary.LittleEndian.Uint32(body[off : off+4])
		off += 4
		if off+int(n) > len(body) {
			return nil, errors.New("net: truncated batch frame body")
		}
		frames = append(frames, body[off:off+int(n)])
		off += int(n)
	}
	return frames, nil
}

// controlFrameLen is the fixed size of a control frame: an 8-byte
// all-zero recipient marker followed by a 4-byte new-turn-count.
const controlFrameLen = 8 + 4

// isControlFrame reports whether frame is a turn-count control frame
// (identified by its all-zero 8-byte recipient prefix) rather than a data
// frame addressed to a real instance, and if so decodes the new turn
// count it carries.
func isControlFrame(frame []byte) (newTurnCount uint32, ok bool) {
	if len(frame) != controlFrameLen {
		return 0, false
	}
	var recipientMarker uint64
	for i := 0; i < 8; i++ {
		recipientMarker |= uint64(frame[i]) << (8 * i)
	}
	if recipientMarker != controlRecipientMarker {
		return 0, false
	}
	return binary.LittleEndian.Uint32(frame[8:12]), true
}

// encodeControlFrame builds a control frame announcing newTurnCount,
// addressed with the reserved all-zero recipient prefix so the receiving
// peer's isControlFrame check can tell it apart from a data frame without
// first trying (and failing) to resolve a recipient class.
func encodeControlFrame(newTurnCount uint32) []byte {
	frame := make([]byte, controlFrameLen)
	binary.LittleEndian.PutUint32(frame[8:12], newTurnCount)
	return frame
}
