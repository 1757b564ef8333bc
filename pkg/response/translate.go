package response

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"
)

// Reference structure sizes and address-family values. Captured payloads
// follow the Linux layout regardless of which host replays them.
const (
	refSockaddrIn4Size = 16 // u16 family, u16 port, 4-byte addr, 8-byte pad
	refSockaddrIn6Size = 28 // u16 family, u16 port, u32 flowinfo, 16-byte addr, u32 scope

	afInet         = 2
	afInet6Linux   = 10
	afInet6FreeBSD = 28
	afInet6Darwin  = 30
)

// Family is the decoded address family of a translated socket address.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "AF_INET"
	case FamilyIPv6:
		return "AF_INET6"
	default:
		return "AF_UNKNOWN"
	}
}

// Sockaddr is the host-native form of a captured socket address.
// Flowinfo and ScopeID are meaningful for IPv6 only. When the translator
// had to fall back to a verbatim copy, Family is FamilyUnknown, Raw holds
// the copied bytes and Truncated reports how many were kept.
type Sockaddr struct {
	Family    Family
	Addr      netip.Addr
	Port      uint16
	Flowinfo  uint32
	ScopeID   uint32
	Raw       []byte
	Truncated int
}

func (sa Sockaddr) String() string {
	switch sa.Family {
	case FamilyIPv4, FamilyIPv6:
		return fmt.Sprintf("%s [%s]:%d", sa.Family, sa.Addr, sa.Port)
	default:
		return fmt.Sprintf("AF_UNKNOWN (%d bytes)", sa.Truncated)
	}
}

func isIPv4FamilyTag(tag uint16) bool {
	// Zero means "family unspecified": some producers omit the tag, and
	// by observation those records are IPv4.
	return tag == afInet || tag == 0
}

func isIPv6FamilyTag(tag uint16) bool {
	switch tag {
	case afInet6Linux, afInet6FreeBSD, afInet6Darwin, 0:
		return true
	}
	return false
}

// DecodeSockaddr translates a captured socket-address payload from the
// reference layout into its host-native form.
//
// The decision chain is ordered; each step encodes a known producer quirk
// and must stay in this order:
//
//  1. exact IPv4 record size and an IPv4 (or zero) family tag → IPv4
//  2. exact IPv6 record size and an IPv6 alias (or zero) family tag → IPv6
//  3. length alone: ≤16 bytes → IPv4, ≥28 bytes → IPv6
//  4. verbatim copy bounded by the native sockaddr capacity, lossy,
//     reporting the truncated length
func DecodeSockaddr(layout Layout, p []byte) Sockaddr {
	ord := layout.Order

	if len(p) == refSockaddrIn4Size && isIPv4FamilyTag(ord.Uint16(p[0:2])) {
		return decodeSockaddr4(p)
	}
	if len(p) == refSockaddrIn6Size && isIPv6FamilyTag(ord.Uint16(p[0:2])) {
		return decodeSockaddr6(ord, p)
	}
	if len(p) <= refSockaddrIn4Size && len(p) >= 8 {
		return decodeSockaddr4(p)
	}
	if len(p) >= refSockaddrIn6Size {
		return decodeSockaddr6(ord, p)
	}

	n := len(p)
	if n > refSockaddrIn6Size {
		n = refSockaddrIn6Size
	}
	raw := make([]byte, n)
	copy(raw, p)
	return Sockaddr{Family: FamilyUnknown, Raw: raw, Truncated: n}
}

func decodeSockaddr4(p []byte) Sockaddr {
	var a4 [4]byte
	copy(a4[:], p[4:8])
	return Sockaddr{
		Family: FamilyIPv4,
		// The captured port is already in network order; copy it verbatim.
		Port: binary.BigEndian.Uint16(p[2:4]),
		Addr: netip.AddrFrom4(a4),
	}
}

func decodeSockaddr6(ord binary.ByteOrder, p []byte) Sockaddr {
	var a16 [16]byte
	copy(a16[:], p[8:24])
	return Sockaddr{
		Family:   FamilyIPv6,
		Port:     binary.BigEndian.Uint16(p[2:4]),
		Flowinfo: ord.Uint32(p[4:8]),
		Addr:     netip.AddrFrom16(a16),
		ScopeID:  ord.Uint32(p[24:28]),
	}
}

// EncodeSockaddr is the capture-side inverse of DecodeSockaddr: it lays a
// socket address out in the reference format. Unknown families reproduce
// their raw bytes.
func EncodeSockaddr(layout Layout, sa Sockaddr) []byte {
	ord := layout.Order
	switch sa.Family {
	case FamilyIPv4:
		p := make([]byte, refSockaddrIn4Size)
		ord.PutUint16(p[0:2], afInet)
		binary.BigEndian.PutUint16(p[2:4], sa.Port)
		a4 := sa.Addr.As4()
		copy(p[4:8], a4[:])
		return p
	case FamilyIPv6:
		p := make([]byte, refSockaddrIn6Size)
		ord.PutUint16(p[0:2], afInet6Linux)
		binary.BigEndian.PutUint16(p[2:4], sa.Port)
		ord.PutUint32(p[4:8], sa.Flowinfo)
		a16 := sa.Addr.As16()
		copy(p[8:24], a16[:])
		ord.PutUint32(p[24:28], sa.ScopeID)
		return p
	default:
		raw := make([]byte, len(sa.Raw))
		copy(raw, sa.Raw)
		return raw
	}
}

// AddrInfo is the host-native form of a captured address-info result.
// The canonical-name, address and next-node fields are pointers on the
// producer host and meaningless here; they are nulled by translation and
// must be re-materialised by the caller if needed. CanonName therefore
// stays empty after translation.
type AddrInfo struct {
	Flags     int32
	Family    int32
	SockType  int32
	Protocol  int32
	AddrLen   uint32
	CanonName string
}

// addrInfoSize returns the reference struct size for the layout's word
// width: five 32-bit fields, padding to pointer alignment, three pointers.
func addrInfoSize(layout Layout) int {
	if layout.WordSize == 8 {
		return 20 + 4 + 3*8 // pad to 8-byte alignment before the pointers
	}
	return 20 + 3*4
}

// DecodeAddrInfo translates a captured addrinfo payload. Only the five
// leading value fields are copied; embedded pointers are discarded.
func DecodeAddrInfo(layout Layout, p []byte) (AddrInfo, error) {
	if len(p) < addrInfoSize(layout) {
		return AddrInfo{}, fmt.Errorf("%w: addrinfo payload is %d bytes, want %d",
			ErrFormat, len(p), addrInfoSize(layout))
	}
	ord := layout.Order
	return AddrInfo{
		Flags:    int32(ord.Uint32(p[0:4])),
		Family:   int32(ord.Uint32(p[4:8])),
		SockType: int32(ord.Uint32(p[8:12])),
		Protocol: int32(ord.Uint32(p[12:16])),
		AddrLen:  ord.Uint32(p[16:20]),
	}, nil
}

// Timeval is the host-native form of a captured time-of-day value, widened
// to 64 bits independent of the producer's integer width.
type Timeval struct {
	Sec  int64
	Usec int64
}

// Time converts the value to a time.Time in UTC.
func (tv Timeval) Time() time.Time {
	return time.Unix(tv.Sec, tv.Usec*int64(time.Microsecond)).UTC()
}

// DecodeTimeval translates a captured timeval payload. Both the 32-bit pair
// (8 bytes) and the 64-bit pair (16 bytes) are in circulation.
func DecodeTimeval(layout Layout, p []byte) (Timeval, error) {
	ord := layout.Order
	switch {
	case len(p) >= 16:
		return Timeval{
			Sec:  int64(ord.Uint64(p[0:8])),
			Usec: int64(ord.Uint64(p[8:16])),
		}, nil
	case len(p) >= 8:
		return Timeval{
			Sec:  int64(int32(ord.Uint32(p[0:4]))),
			Usec: int64(int32(ord.Uint32(p[4:8]))),
		}, nil
	default:
		return Timeval{}, fmt.Errorf("%w: timeval payload is %d bytes", ErrFormat, len(p))
	}
}

// EncodeTimeval lays a timeval out in the reference format, using the
// layout's word width for both fields.
func EncodeTimeval(layout Layout, tv Timeval) []byte {
	ord := layout.Order
	if layout.WordSize == 8 {
		p := make([]byte, 16)
		ord.PutUint64(p[0:8], uint64(tv.Sec))
		ord.PutUint64(p[8:16], uint64(tv.Usec))
		return p
	}
	p := make([]byte, 8)
	ord.PutUint32(p[0:4], uint32(int32(tv.Sec)))
	ord.PutUint32(p[4:8], uint32(int32(tv.Usec)))
	return p
}

// DecodeScalar interprets a scalar payload (TTL, protocol id, length)
// according to its declared byte width. Widths other than 1, 2 or 4 do not
// decode.
func DecodeScalar(layout Layout, p []byte) (uint32, bool) {
	switch len(p) {
	case 1:
		return uint32(p[0]), true
	case 2:
		return uint32(layout.Order.Uint16(p)), true
	case 4:
		return layout.Order.Uint32(p), true
	default:
		return 0, false
	}
}
