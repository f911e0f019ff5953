package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/codefionn/wsbridge/internal/consts"
)

// ErrFrameTooLarge is returned when a frame header declares a payload
// larger than the codec's ceiling. The declared body has NOT been
// consumed when this is returned.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// FrameCodec reads and writes length-prefixed frames: a 4-byte unsigned
// big-endian payload length followed by exactly that many payload bytes.
type FrameCodec struct {
	maxSize uint32
}

// NewFrameCodec creates a codec with the given payload size ceiling.
// A non-positive ceiling falls back to consts.MaxFrameSize.
func NewFrameCodec(maxSize int) *FrameCodec {
	if maxSize <= 0 {
		maxSize = consts.MaxFrameSize
	}
	return &FrameCodec{maxSize: uint32(maxSize)}
}

// MaxSize returns the payload size ceiling.
func (fc *FrameCodec) MaxSize() int {
	return int(fc.maxSize)
}

// ReadHeader reads the 4-byte length prefix. If the peer closes the
// stream before a full header arrives, io.EOF is returned (clean
// disconnect). If the declared length exceeds the ceiling,
// ErrFrameTooLarge is returned together with the declared length so the
// caller can decide how to drain or abandon the stream.
func (fc *FrameCodec) ReadHeader(r io.Reader) (uint32, error) {
	var header [consts.FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}
		return 0, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > fc.maxSize {
		return length, ErrFrameTooLarge
	}
	return length, nil
}

// ReadPayload reads exactly length payload bytes. The caller is
// responsible for any read deadline on the underlying connection.
// Returns the number of bytes actually read alongside any error so the
// caller can distinguish an empty read from a partial one.
func (fc *FrameCodec) ReadPayload(r io.Reader, length uint32) ([]byte, int, error) {
	if length == 0 {
		return []byte{}, 0, nil
	}
	payload := make([]byte, length)
	n, err := io.ReadFull(r, payload)
	if err != nil {
		return nil, n, err
	}
	return payload, n, nil
}

// Discard reads and throws away exactly length bytes in bounded chunks.
// Used to re-synchronize the stream after an oversized frame whose body
// the peer already wrote.
func (fc *FrameCodec) Discard(r io.Reader, length uint32) error {
	buf := make([]byte, consts.BufferSize64KB)
	remaining := int64(length)
	for remaining > 0 {
		chunk := int64(len(buf))
		if remaining < chunk {
			chunk = remaining
		}
		n, err := r.Read(buf[:chunk])
		remaining -= int64(n)
		if err != nil {
			return fmt.Errorf("failed to drain oversized frame (%d bytes left): %w", remaining, err)
		}
	}
	return nil
}

// WriteFrame writes the length prefix and payload as one unit. Both are
// flushed before WriteFrame returns.
func (fc *FrameCodec) WriteFrame(w io.Writer, payload []byte) error {
	var header [consts.FrameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	// Single write keeps header and payload together on the wire.
	frame := make([]byte, 0, len(header)+len(payload))
	frame = append(frame, header[:]...)
	frame = append(frame, payload...)

	n, err := w.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}
