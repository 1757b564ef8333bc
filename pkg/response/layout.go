package response

import "encoding/binary"

// Layout describes the producer platform's framing conventions: the byte
// order of integer fields and the width of the platform word used for the
// size field. Payload structures (sockaddr, addrinfo, timeval) are decoded
// against the same layout, field by field with explicit offsets and widths,
// never by reinterpreting the byte buffer as a host structure.
type Layout struct {
	Order    binary.ByteOrder
	WordSize int // size field width in bytes: 4 or 8
}

var (
	// LinuxLE64 is the reference layout: 64-bit little-endian Linux, the
	// platform the capture fleet runs on.
	LinuxLE64 = Layout{Order: binary.LittleEndian, WordSize: 8}

	// LinuxLE32 covers the older 32-bit probes.
	LinuxLE32 = Layout{Order: binary.LittleEndian, WordSize: 4}
)

// DefaultLayout is used when a session or writer does not pick one.
var DefaultLayout = LinuxLE64

// Record is one framed (tag, payload) unit of a log. Records are created
// once by a Writer and immutable thereafter.
type Record struct {
	Tag     int32 // wire tag as decoded from the stream
	Kind    Kind  // canonical kind for the tag, KindNone if unknown
	Payload []byte
}
