package response

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// maxPayloadSize is the hard ceiling on a declared payload length. The
// format has no checksums; a corrupted size field would otherwise drive an
// arbitrarily large allocation or copy.
const maxPayloadSize = 1 << 20

// Mode is the transcoding mode of an open session, decided once per log.
type Mode int

const (
	ModeBinary Mode = iota
	ModeJSON
)

func (m Mode) String() string {
	if m == ModeJSON {
		return "json"
	}
	return "binary"
}

// Session decodes one response log sequentially. It holds the per-log decode
// state: the detected transcoding mode, at most one peeked-but-not-consumed
// wire tag, and the current-tool diagnostic hint. Sessions must not be
// shared across concurrently open logs; open one Session per log instead.
type Session struct {
	br     *bufio.Reader
	closer io.Closer
	layout Layout
	log    logrus.FieldLogger
	tool   string

	sniffed  bool
	mode     Mode
	js       *jsonSession
	sniffErr error

	pending    bool
	pendingTag int32
}

// Open opens a log file for reading. The decode path (binary or JSON) is
// detected from the first bytes on first use and fixed for the session.
func Open(path string, opts ...Option) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := NewSession(f, opts...)
	s.closer = f
	return s, nil
}

// NewSession wraps an already-open stream.
func NewSession(r io.Reader, opts ...Option) *Session {
	o := applyOptions(opts)
	return &Session{
		br:     bufio.NewReader(r),
		layout: o.layout,
		log:    o.log,
		tool:   o.tool,
	}
}

// SetTool records the probe tool currently replaying this log. The hint is
// diagnostic only: it shows up in mismatch errors and log fields.
func (s *Session) SetTool(name string) { s.tool = name }

// Mode reports the detected transcoding mode. Before the first read it
// triggers detection.
func (s *Session) Mode() Mode {
	s.sniff()
	return s.mode
}

// Close releases the underlying file, if the session owns one.
func (s *Session) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// sniff decides the decode path once. A log that opens with the fixed
// pretty-printed-JSON byte pattern switches the whole session to the JSON
// reader; everything else is framed binary. A log that sniffs as JSON but
// does not parse is malformed and fatal for the session: the stream has
// already been drained, so there is nothing left to fall back to.
func (s *Session) sniff() {
	if s.sniffed {
		return
	}
	s.sniffed = true

	prefix, err := s.br.Peek(len(jsonMagic))
	if err != nil || !SniffJSON(prefix) {
		s.mode = ModeBinary
		return
	}

	s.mode = ModeJSON
	data, err := io.ReadAll(s.br)
	if err != nil {
		s.sniffErr = fmt.Errorf("%w: reading JSON log: %v", ErrFormat, err)
		return
	}
	js, err := parseJSONSession(data, s.layout)
	if err != nil {
		s.sniffErr = err
		return
	}
	s.js = js
	s.log.WithField("tool", s.tool).Debug("JSON log detected")
}

// readTag decodes the next wire tag from the binary stream.
func (s *Session) readTag() (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(s.br, b[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("%w: short read on type field: %v", ErrFormat, err)
	}
	return int32(s.layout.Order.Uint32(b[:])), nil
}

// readSize decodes the platform word-sized size field and enforces the
// payload ceiling.
func (s *Session) readSize() (int, error) {
	var b [8]byte
	n := s.layout.WordSize
	if _, err := io.ReadFull(s.br, b[:n]); err != nil {
		return 0, fmt.Errorf("%w: short read on size field: %v", ErrFormat, err)
	}
	var size uint64
	if n == 8 {
		size = s.layout.Order.Uint64(b[:8])
	} else {
		size = uint64(s.layout.Order.Uint32(b[:4]))
	}
	if size > maxPayloadSize {
		return 0, fmt.Errorf("%w: declared payload size %d exceeds ceiling", ErrFormat, size)
	}
	return int(size), nil
}

// PeekKind returns the canonical kind of the next record without consuming
// it. Repeated calls before a consuming read return the identical cached
// value and do not advance the stream. At end of log it returns io.EOF.
func (s *Session) PeekKind() (Kind, error) {
	s.sniff()
	if s.sniffErr != nil {
		return KindNone, s.sniffErr
	}
	if s.mode == ModeJSON {
		tag, err := s.js.peekTag()
		if err != nil {
			return KindNone, err
		}
		return CanonicalKind(tag), nil
	}

	if !s.pending {
		tag, err := s.readTag()
		if err != nil {
			return KindNone, err
		}
		s.pending = true
		s.pendingTag = tag
	}
	return CanonicalKind(s.pendingTag), nil
}

// ReadExpected consumes the next record, which must encode the same wire tag
// as kind. The payload is copied into buf after any required structure
// translation on the JSON path; the returned length is the payload size.
//
// A previously peeked tag is reused; otherwise the tag is decoded fresh. On
// a tag mismatch the record stays pending, so retrying with the right kind
// succeeds.
func (s *Session) ReadExpected(kind Kind, buf []byte) (int, error) {
	s.sniff()
	if s.sniffErr != nil {
		return 0, s.sniffErr
	}
	if s.mode == ModeJSON {
		return s.js.readExpected(kind, buf, s.tool)
	}

	if !s.pending {
		tag, err := s.readTag()
		if err != nil {
			return 0, err
		}
		s.pending = true
		s.pendingTag = tag
	}
	if s.pendingTag != kind.WireTag() {
		err := &TypeMismatchError{Expected: kind, GotTag: s.pendingTag, Tool: s.tool}
		s.log.WithFields(logrus.Fields{
			"tool":     s.tool,
			"expected": kind.WireTag(),
			"got":      s.pendingTag,
		}).Debug("record type mismatch")
		return 0, err
	}
	s.pending = false

	size, err := s.readSize()
	if err != nil {
		return 0, err
	}
	if size > len(buf) {
		return 0, fmt.Errorf("%w: payload is %d bytes, buffer holds %d",
			ErrBufferTooSmall, size, len(buf))
	}
	if _, err := io.ReadFull(s.br, buf[:size]); err != nil {
		return 0, fmt.Errorf("%w: short read on %d-byte payload: %v", ErrFormat, size, err)
	}
	return size, nil
}

// Next consumes the next record whatever its tag, for transcoding and
// inspection. In JSON mode the payload is the reconstructed reference-layout
// form where supported and empty otherwise.
func (s *Session) Next() (Record, error) {
	s.sniff()
	if s.sniffErr != nil {
		return Record{}, s.sniffErr
	}
	if s.mode == ModeJSON {
		return s.js.next()
	}

	var tag int32
	if s.pending {
		tag = s.pendingTag
		s.pending = false
	} else {
		t, err := s.readTag()
		if err != nil {
			return Record{}, err
		}
		tag = t
	}

	size, err := s.readSize()
	if err != nil {
		return Record{}, err
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(s.br, payload); err != nil {
		return Record{}, fmt.Errorf("%w: short read on %d-byte payload: %v", ErrFormat, size, err)
	}
	return Record{Tag: tag, Kind: CanonicalKind(tag), Payload: payload}, nil
}

// ReadSockaddr consumes a socket-address record of the given kind and runs
// the structure translator on it.
func (s *Session) ReadSockaddr(kind Kind) (Sockaddr, error) {
	var buf [maxSockaddrPayload]byte
	n, err := s.ReadExpected(kind, buf[:])
	if err != nil {
		return Sockaddr{}, err
	}
	return DecodeSockaddr(s.layout, buf[:n]), nil
}

// ReadTimeval consumes a time-of-day record and translates it.
func (s *Session) ReadTimeval(kind Kind) (Timeval, error) {
	var buf [16]byte
	n, err := s.ReadExpected(kind, buf[:])
	if err != nil {
		return Timeval{}, err
	}
	if s.mode == ModeJSON {
		return Timeval{}, fmt.Errorf("%w: %s from JSON", ErrUnsupportedConversion, kind)
	}
	return DecodeTimeval(s.layout, buf[:n])
}

// ReadAddrInfo consumes an address-info record and translates it.
func (s *Session) ReadAddrInfo(kind Kind) (AddrInfo, error) {
	var buf [64]byte
	n, err := s.ReadExpected(kind, buf[:])
	if err != nil {
		return AddrInfo{}, err
	}
	if s.mode == ModeJSON {
		return AddrInfo{}, fmt.Errorf("%w: %s from JSON", ErrUnsupportedConversion, kind)
	}
	return DecodeAddrInfo(s.layout, buf[:n])
}

// maxSockaddrPayload comfortably holds either reference sockaddr plus any
// oversized producer variant the lossy fallback may see.
const maxSockaddrPayload = 128
