package response

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DocumentVersion is the format-version tag carried by JSON logs.
const DocumentVersion = "2.0"

// jsonMagic is the fixed byte pattern opening a pretty-printed JSON log:
// an object brace, newline, two-space indent and the start of the "version"
// key. Binary logs can never start this way (tag 0x7B0A2020 is not framed
// with a '"v' size field), so the prefix alone decides the decode path.
var jsonMagic = []byte("{\n  \"v")

// SniffJSON reports whether the first bytes of a log identify the JSON form.
func SniffJSON(prefix []byte) bool {
	if len(prefix) < len(jsonMagic) {
		return false
	}
	for i, b := range jsonMagic {
		if prefix[i] != b {
			return false
		}
	}
	return true
}

// SockaddrJSON is the presentation form of a socket-address payload.
// Address is textual; Flowinfo and ScopeID appear for IPv6 records only.
type SockaddrJSON struct {
	Family   string  `json:"family"`
	Address  *string `json:"address,omitempty"`
	Port     *int    `json:"port,omitempty"`
	Flowinfo *uint32 `json:"flowinfo,omitempty"`
	ScopeID  *uint32 `json:"scope_id,omitempty"`
}

// Response is one record in the JSON document. The type-specific field set
// depends on the wire tag: socket addresses render as Sockaddr, packets as
// lowercase hex, scalars as a number, and unrecognised kinds fall back to a
// hex-encoded raw-data field.
type Response struct {
	Type     int32         `json:"type"`
	TypeName string        `json:"type_name"`
	Size     int           `json:"size"`
	Sockaddr *SockaddrJSON `json:"sockaddr,omitempty"`
	Packet   string        `json:"packet_data,omitempty"`
	Value    *uint32       `json:"value,omitempty"`
	RawData  string        `json:"raw_data,omitempty"`
}

// Document is the JSON form of a whole log. TotalResponses duplicates
// len(Responses) so a consumer can validate structure without re-parsing
// the array.
type Document struct {
	Version        string     `json:"version"`
	Source         string     `json:"source"`
	OriginalFile   string     `json:"original_file"`
	Responses      []Response `json:"responses"`
	TotalResponses int        `json:"total_responses"`
}

// Transcode drains the session and builds the equivalent JSON document.
// source names the producing tool, originalFile the log being converted.
func Transcode(s *Session, source, originalFile string) (*Document, error) {
	doc := &Document{
		Version:      DocumentVersion,
		Source:       source,
		OriginalFile: originalFile,
		Responses:    []Response{},
	}
	for {
		rec, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		doc.Responses = append(doc.Responses, transcodeRecord(s.layout, rec))
	}
	doc.TotalResponses = len(doc.Responses)
	return doc, nil
}

func transcodeRecord(layout Layout, rec Record) Response {
	r := Response{
		Type:     rec.Tag,
		TypeName: rec.Kind.String(),
		Size:     len(rec.Payload),
	}

	switch rec.Kind {
	case KindSockname, KindDstAddr, KindPeername:
		if len(rec.Payload) >= refSockaddrIn4Size {
			r.Sockaddr = sockaddrToJSON(DecodeSockaddr(layout, rec.Payload))
		}
	case KindPacket:
		if len(rec.Payload) > 0 {
			r.Packet = hex.EncodeToString(rec.Payload)
		}
	case KindRcvdTTL, KindLength:
		if v, ok := DecodeScalar(layout, rec.Payload); ok {
			r.Value = &v
		}
	case KindTimeout:
		// Timeouts carry no payload worth rendering.
	default:
		if len(rec.Payload) > 0 {
			r.RawData = hex.EncodeToString(rec.Payload)
		}
	}
	return r
}

func sockaddrToJSON(sa Sockaddr) *SockaddrJSON {
	out := &SockaddrJSON{Family: sa.Family.String()}
	switch sa.Family {
	case FamilyIPv4:
		addr := sa.Addr.String()
		port := int(sa.Port)
		out.Address = &addr
		out.Port = &port
	case FamilyIPv6:
		addr := sa.Addr.String()
		port := int(sa.Port)
		out.Address = &addr
		out.Port = &port
		flowinfo, scopeID := sa.Flowinfo, sa.ScopeID
		out.Flowinfo = &flowinfo
		out.ScopeID = &scopeID
	}
	return out
}

// Encode writes the document in its canonical pretty-printed form, the one
// the sniffer recognises.
func (d *Document) Encode(w io.Writer) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON log: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON log: %w", err)
	}
	return nil
}
