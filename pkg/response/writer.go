package response

import (
	"bufio"
	"io"
)

// Writer appends framed records to a capture log: tag, size, payload, no
// delimiter. One Writer serves one capture session; after the first output
// failure every further call returns the same error.
type Writer struct {
	w      *bufio.Writer
	layout Layout
	err    error
}

// NewWriter wraps w with the session options (layout selection applies).
func NewWriter(w io.Writer, opts ...Option) *Writer {
	o := applyOptions(opts)
	return &Writer{w: bufio.NewWriter(w), layout: o.layout}
}

// Write appends one record. The size field records the exact payload length.
func (w *Writer) Write(kind Kind, payload []byte) error {
	if w.err != nil {
		return w.err
	}

	var frame [12]byte
	ord := w.layout.Order
	ord.PutUint32(frame[0:4], uint32(kind.WireTag()))
	n := 4
	if w.layout.WordSize == 8 {
		ord.PutUint64(frame[4:12], uint64(len(payload)))
		n = 12
	} else {
		ord.PutUint32(frame[4:8], uint32(len(payload)))
		n = 8
	}

	if _, err := w.w.Write(frame[:n]); err != nil {
		w.err = &WriteError{Kind: kind, Err: err}
		return w.err
	}
	if _, err := w.w.Write(payload); err != nil {
		w.err = &WriteError{Kind: kind, Err: err}
		return w.err
	}
	return nil
}

// Flush drains buffered output to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.err = &WriteError{Err: err}
		return w.err
	}
	return nil
}
