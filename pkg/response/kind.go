// Package response implements the tagged binary log format that captures the
// response events of network-measurement probes (socket names, destination
// addresses, packets, address-info results, timestamps, TTLs) so a probe run
// can be replayed deterministically and offline.
//
// Binary frame layout (producer-native byte order and widths):
//
//	Offset  Size      Description
//	------  ----      -----------
//	0       4         Wire tag (signed integer)
//	4       word      Payload size (platform word-sized unsigned integer)
//	4+word  size      Payload bytes
//
// Records repeat back to back with no header, delimiter or trailer; end of
// file ends the stream. The format assumes a trusted, well-formed producer:
// a short read on any framing field is fatal for the session.
//
// A log may alternatively be a pretty-printed JSON document (fixture
// authoring/inspection form). The first bytes of the stream decide the decode
// path once per session, see SniffJSON.
package response

// Kind identifies how a record's payload must be interpreted.
//
// Kind is semantic, not a wire value: several kinds share one numeric wire
// tag in the observed format (for example PEERNAME, PROTO, TTL, TIMEOFDAY,
// READ_ERROR and N_RESOLV all encode as 4). The byte stream alone cannot
// tell them apart; the kind a caller passes to ReadExpected resolves the
// semantics per call site.
type Kind int

const (
	KindNone Kind = iota
	KindPacket
	KindSockname
	KindDstAddr
	KindPeername
	KindProto
	KindRcvdTTL
	KindRcvdTClass
	KindSendto
	KindAddrinfo
	KindAddrinfoSA
	KindTTL
	KindTimeofday
	KindReadError
	KindNResolv
	KindResolver
	KindLength
	KindData
	KindCmsg
	KindTimeout
)

// wireTags collapses the semantic enumeration onto the observed wire values.
var wireTags = map[Kind]int32{
	KindPacket:     1,
	KindSockname:   2,
	KindDstAddr:    3,
	KindPeername:   4,
	KindProto:      4,
	KindRcvdTTL:    5,
	KindRcvdTClass: 6,
	KindSendto:     7,
	KindAddrinfo:   8,
	KindAddrinfoSA: 9,
	KindTTL:        4,
	KindTimeofday:  4,
	KindReadError:  4,
	KindNResolv:    4,
	KindResolver:   5,
	KindLength:     6,
	KindData:       7,
	KindCmsg:       8,
	KindTimeout:    9,
}

var kindNames = map[Kind]string{
	KindNone:       "UNKNOWN",
	KindPacket:     "RESP_PACKET",
	KindSockname:   "RESP_SOCKNAME",
	KindDstAddr:    "RESP_DSTADDR",
	KindPeername:   "RESP_PEERNAME",
	KindProto:      "RESP_PROTO",
	KindRcvdTTL:    "RESP_RCVDTTL",
	KindRcvdTClass: "RESP_RCVDTCLASS",
	KindSendto:     "RESP_SENDTO",
	KindAddrinfo:   "RESP_ADDRINFO",
	KindAddrinfoSA: "RESP_ADDRINFO_SA",
	KindTTL:        "RESP_TTL",
	KindTimeofday:  "RESP_TIMEOFDAY",
	KindReadError:  "RESP_READ_ERROR",
	KindNResolv:    "RESP_N_RESOLV",
	KindResolver:   "RESP_RESOLVER",
	KindLength:     "RESP_LENGTH",
	KindData:       "RESP_DATA",
	KindCmsg:       "RESP_CMSG",
	KindTimeout:    "RESP_TIMEOUT",
}

// WireTag returns the numeric value the kind encodes as on the wire.
// KindNone has no wire representation and returns -1.
func (k Kind) WireTag() int32 {
	if t, ok := wireTags[k]; ok {
		return t
	}
	return -1
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "UNKNOWN"
}

// canonicalKinds resolves a wire tag to the kind name used in JSON output.
// Where names alias one tag, the winner is the first name the original
// producers checked; the order is observed behaviour, not a design choice.
var canonicalKinds = map[int32]Kind{
	1: KindPacket,
	2: KindSockname,
	3: KindDstAddr,
	4: KindPeername,
	5: KindRcvdTTL,
	6: KindLength,
	7: KindSendto,
	8: KindCmsg,
	9: KindTimeout,
}

// CanonicalKind maps a decoded wire tag to its canonical kind for display
// and JSON type_name purposes. Unknown tags map to KindNone.
func CanonicalKind(tag int32) Kind {
	if k, ok := canonicalKinds[tag]; ok {
		return k
	}
	return KindNone
}

// KindFromName resolves a symbolic RESP_* name as found in JSON fixtures.
func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if k != KindNone && n == name {
			return k, true
		}
	}
	return KindNone, false
}

// jsonAuthoringCodes is the small-integer type mapping accepted in JSON
// fixtures. It predates the binary wire tags and deliberately differs from
// them; both spellings map onto the same closed enumeration.
var jsonAuthoringCodes = map[int]Kind{
	0: KindPacket,
	1: KindData,
	2: KindSockname,
	3: KindDstAddr,
	4: KindPeername,
	5: KindTimeofday,
	6: KindTimeout,
	7: KindReadError,
}

// KindFromCode resolves a small-integer JSON authoring code.
func KindFromCode(code int) (Kind, bool) {
	k, ok := jsonAuthoringCodes[code]
	return k, ok
}
