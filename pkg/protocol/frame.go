package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/dittosh/pkg/bufpool"
)

const (
	// HeaderSize is the length prefix in bytes.
	HeaderSize = 4

	// DefaultMaxFrameSize bounds a single frame body.
	DefaultMaxFrameSize = 64 << 10
)

var framePool = bufpool.NewPool(bufpool.DefaultSmallSize, DefaultMaxFrameSize)

// FrameReader reads length-prefixed frames from a stream, reassembling
// frames split across reads and splitting frames coalesced into one read.
//
// A FrameReader is not safe for concurrent use.
type FrameReader struct {
	r       io.Reader
	maxSize int
	header  [HeaderSize]byte
	buf     []byte // pooled body of the last frame
}

// NewFrameReader wraps r. A non-positive maxSize selects DefaultMaxFrameSize.
func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &FrameReader{r: r, maxSize: maxSize}
}

// ReadFrame returns the next frame body. The slice is only valid until the
// next ReadFrame or Release call.
//
// io.EOF is returned only on a clean boundary between frames; a stream that
// ends inside a frame yields io.ErrUnexpectedEOF. An announced length above
// the limit yields ErrFrameTooLarge without reading the body.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	fr.Release()

	if _, err := io.ReadFull(fr.r, fr.header[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(fr.header[:])
	if uint64(n) > uint64(fr.maxSize) {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, n, fr.maxSize)
	}
	if n == 0 {
		return []byte{}, nil
	}

	buf := framePool.Get(int(n))
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		framePool.Put(buf)
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	fr.buf = buf
	return buf, nil
}

// ReadMessage reads and decodes one frame. A *DecodeError means the frame
// was consumed but unreadable and the stream is still usable; any other
// error is fatal for the connection.
func (fr *FrameReader) ReadMessage() (Message, error) {
	frame, err := fr.ReadFrame()
	if err != nil {
		return nil, err
	}
	defer fr.Release()
	return Decode(frame)
}

// Release returns the current frame buffer to the pool.
func (fr *FrameReader) Release() {
	if fr.buf != nil {
		framePool.Put(fr.buf)
		fr.buf = nil
	}
}

// WriteFrame writes body with its length prefix in a single Write call.
func WriteFrame(w io.Writer, body []byte, maxSize int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	if len(body) > maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, len(body), maxSize)
	}

	out := framePool.Get(HeaderSize + len(body))
	defer framePool.Put(out)

	binary.BigEndian.PutUint32(out[:HeaderSize], uint32(len(body)))
	copy(out[HeaderSize:], body)
	_, err := w.Write(out)
	return err
}

// WriteMessage encodes msg and writes it as one frame.
func WriteMessage(w io.Writer, msg Message, maxSize int) error {
	body, err := Encode(msg)
	if err != nil {
		return err
	}
	return WriteFrame(w, body, maxSize)
}
