package response

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/valyala/fastjson"
)

// jsonSession is the JSON decode path of a Session. It walks the "responses"
// array of a parsed fixture document in order, with the same peek/consume
// contract as the binary path. Only socket-address reconstruction produces
// native payload bytes; the JSON form exists for fixture authoring and
// inspection, not full-fidelity replay.
type jsonSession struct {
	parser    fastjson.Parser // owns the memory the values point into
	responses []*fastjson.Value
	layout    Layout
	idx       int

	pending    bool
	pendingTag int32
}

func parseJSONSession(data []byte, layout Layout) (*jsonSession, error) {
	js := &jsonSession{layout: layout}
	root, err := js.parser.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	arr := root.Get("responses")
	if arr == nil || arr.Type() != fastjson.TypeArray {
		return nil, fmt.Errorf("%w: JSON log has no responses array", ErrFormat)
	}
	js.responses, _ = arr.Array()
	return js, nil
}

// recordTag resolves the element's declared type, which may be a symbolic
// RESP_* name or a small-integer authoring code, to a wire tag. Unknown
// spellings become tag -1 so they can never satisfy an expected kind.
func recordTag(v *fastjson.Value) int32 {
	t := v.Get("type")
	if t == nil {
		return -1
	}
	switch t.Type() {
	case fastjson.TypeString:
		name, _ := t.StringBytes()
		if k, ok := KindFromName(string(name)); ok {
			return k.WireTag()
		}
	case fastjson.TypeNumber:
		if k, ok := KindFromCode(t.GetInt()); ok {
			return k.WireTag()
		}
	}
	return -1
}

func (js *jsonSession) peekTag() (int32, error) {
	if !js.pending {
		if js.idx >= len(js.responses) {
			return 0, io.EOF
		}
		js.pendingTag = recordTag(js.responses[js.idx])
		js.pending = true
	}
	return js.pendingTag, nil
}

func (js *jsonSession) readExpected(kind Kind, buf []byte, tool string) (int, error) {
	tag, err := js.peekTag()
	if err != nil {
		return 0, err
	}
	if tag != kind.WireTag() {
		return 0, &TypeMismatchError{Expected: kind, GotTag: tag, Tool: tool}
	}
	js.pending = false

	elem := js.responses[js.idx]
	js.idx++

	payload, err := js.reconstruct(kind, elem)
	if err != nil {
		return 0, err
	}
	if len(payload) > len(buf) {
		return 0, fmt.Errorf("%w: payload is %d bytes, buffer holds %d",
			ErrBufferTooSmall, len(payload), len(buf))
	}
	copy(buf, payload)
	return len(payload), nil
}

func (js *jsonSession) next() (Record, error) {
	tag, err := js.peekTag()
	if err != nil {
		return Record{}, err
	}
	js.pending = false

	elem := js.responses[js.idx]
	js.idx++

	kind := CanonicalKind(tag)
	payload, err := js.reconstruct(kind, elem)
	if err != nil {
		payload = nil
	}
	return Record{Tag: tag, Kind: kind, Payload: payload}, nil
}

// reconstruct produces the reference-layout payload for the record. Socket
// addresses are the only kind with a native reconstruction; everything else
// yields a zero-length payload.
func (js *jsonSession) reconstruct(kind Kind, elem *fastjson.Value) ([]byte, error) {
	switch kind {
	case KindSockname, KindDstAddr, KindPeername:
		sa, err := jsonToSockaddr(elem)
		if err != nil {
			return nil, err
		}
		return EncodeSockaddr(js.layout, sa), nil
	default:
		return nil, nil
	}
}

// jsonToSockaddr rebuilds a socket address from its presentation form. The
// address object lives under "sockaddr" in converter output and under
// "data" in hand-authored fixtures; both spellings are accepted. A null or
// empty address string reconstructs the "any" address, supporting
// DNS-lookup-in-progress fixtures.
func jsonToSockaddr(elem *fastjson.Value) (Sockaddr, error) {
	data := elem.Get("sockaddr")
	if data == nil {
		data = elem.Get("data")
	}
	if data == nil {
		return Sockaddr{}, fmt.Errorf("%w: sockaddr record has no address object",
			ErrUnsupportedConversion)
	}

	family := string(data.GetStringBytes("family"))
	addrStr := ""
	if a := data.Get("address"); a != nil && a.Type() == fastjson.TypeString {
		b, _ := a.StringBytes()
		addrStr = string(b)
	}
	port := uint16(data.GetInt("port"))

	switch family {
	case "AF_INET":
		sa := Sockaddr{Family: FamilyIPv4, Port: port, Addr: netip.IPv4Unspecified()}
		if addrStr != "" {
			addr, err := netip.ParseAddr(addrStr)
			if err != nil || !addr.Is4() {
				return Sockaddr{}, fmt.Errorf("%w: bad IPv4 address %q",
					ErrUnsupportedConversion, addrStr)
			}
			sa.Addr = addr
		}
		return sa, nil
	case "AF_INET6":
		sa := Sockaddr{
			Family:   FamilyIPv6,
			Port:     port,
			Addr:     netip.IPv6Unspecified(),
			Flowinfo: uint32(data.GetInt("flowinfo")),
			ScopeID:  uint32(data.GetInt("scope_id")),
		}
		if addrStr != "" {
			addr, err := netip.ParseAddr(addrStr)
			if err != nil || !addr.Is6() || addr.Is4In6() {
				return Sockaddr{}, fmt.Errorf("%w: bad IPv6 address %q",
					ErrUnsupportedConversion, addrStr)
			}
			sa.Addr = addr
		}
		return sa, nil
	default:
		return Sockaddr{}, fmt.Errorf("%w: unknown address family %q",
			ErrUnsupportedConversion, family)
	}
}
