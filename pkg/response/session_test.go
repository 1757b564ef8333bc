package response

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLog writes the given (kind, payload) pairs into an in-memory log.
func buildLog(t *testing.T, layout Layout, recs ...Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, WithLayout(layout))
	for _, r := range recs {
		require.NoError(t, w.Write(r.Kind, r.Payload))
	}
	require.NoError(t, w.Flush())
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	recs := []Record{
		{Kind: KindSockname, Payload: bytes.Repeat([]byte{0xAA}, 16)},
		{Kind: KindPacket, Payload: []byte{1, 2, 3, 4, 5}},
		{Kind: KindRcvdTTL, Payload: []byte{64, 0, 0, 0}},
		{Kind: KindTimeout, Payload: nil},
		{Kind: KindDstAddr, Payload: bytes.Repeat([]byte{0xBB}, 28)},
	}
	data := buildLog(t, LinuxLE64, recs...)

	s := NewSession(bytes.NewReader(data))
	for _, want := range recs {
		buf := make([]byte, 64)
		n, err := s.ReadExpected(want.Kind, buf)
		require.NoError(t, err)
		assert.Equal(t, len(want.Payload), n)
		// bytes.Equal, not assert.Equal: a nil payload reads back as an
		// empty slice and the two must compare equal here.
		assert.True(t, bytes.Equal(want.Payload, buf[:n]), "payload for %s", want.Kind)
	}
	_, err := s.PeekKind()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRoundTrip32BitLayout(t *testing.T) {
	data := buildLog(t, LinuxLE32, Record{Kind: KindData, Payload: []byte("abc")})

	s := NewSession(bytes.NewReader(data), WithLayout(LinuxLE32))
	buf := make([]byte, 8)
	n, err := s.ReadExpected(KindData, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), buf[:n])
}

func TestPeekIdempotent(t *testing.T) {
	data := buildLog(t, LinuxLE64,
		Record{Kind: KindSockname, Payload: make([]byte, 16)},
		Record{Kind: KindPacket, Payload: []byte{9}},
	)
	s := NewSession(bytes.NewReader(data))

	for i := 0; i < 5; i++ {
		k, err := s.PeekKind()
		require.NoError(t, err)
		assert.Equal(t, KindSockname, k)
	}

	buf := make([]byte, 16)
	n, err := s.ReadExpected(KindSockname, buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	k, err := s.PeekKind()
	require.NoError(t, err)
	assert.Equal(t, KindPacket, k)
}

func TestTypeEnforcementAndRecovery(t *testing.T) {
	data := buildLog(t, LinuxLE64, Record{Kind: KindSockname, Payload: make([]byte, 16)})
	s := NewSession(bytes.NewReader(data))
	s.SetTool("evping")

	buf := make([]byte, 32)
	_, err := s.ReadExpected(KindPacket, buf)
	require.ErrorIs(t, err, ErrTypeMismatch)

	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, KindPacket, tm.Expected)
	assert.Equal(t, int32(2), tm.GotTag)
	assert.Equal(t, "evping", tm.Tool)

	// The record stays pending: the correct kind still reads it.
	n, err := s.ReadExpected(KindSockname, buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

func TestAliasedKindsResolveByCallSite(t *testing.T) {
	// PEERNAME and TIMEOFDAY share wire tag 4; the caller's expectation
	// decides which one a record is.
	data := buildLog(t, LinuxLE64, Record{Kind: KindPeername, Payload: make([]byte, 8)})
	s := NewSession(bytes.NewReader(data))

	buf := make([]byte, 8)
	_, err := s.ReadExpected(KindTimeofday, buf)
	assert.NoError(t, err)
}

func TestBufferTooSmall(t *testing.T) {
	data := buildLog(t, LinuxLE64, Record{Kind: KindPacket, Payload: bytes.Repeat([]byte{0xCC}, 10)})
	s := NewSession(bytes.NewReader(data))

	buf := make([]byte, 4)
	_, err := s.ReadExpected(KindPacket, buf)
	require.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Equal(t, make([]byte, 4), buf, "nothing may be written into a too-small buffer")
}

func TestPayloadCeiling(t *testing.T) {
	var buf bytes.Buffer
	var frame [12]byte
	binary.LittleEndian.PutUint32(frame[0:4], 1) // PACKET
	binary.LittleEndian.PutUint64(frame[4:12], maxPayloadSize+1)
	buf.Write(frame[:])

	s := NewSession(bytes.NewReader(buf.Bytes()))
	out := make([]byte, 16)
	_, err := s.ReadExpected(KindPacket, out)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestShortReadIsFormatError(t *testing.T) {
	// Tag present, size field truncated.
	data := []byte{1, 0, 0, 0, 0xFF, 0xFF}
	s := NewSession(bytes.NewReader(data))
	out := make([]byte, 16)
	_, err := s.ReadExpected(KindPacket, out)
	assert.ErrorIs(t, err, ErrFormat)

	// Truncated tag field is also malformed, not EOF.
	s = NewSession(bytes.NewReader([]byte{1, 0}))
	_, err = s.PeekKind()
	assert.ErrorIs(t, err, ErrFormat)
}

func TestEmptyLogIsEOF(t *testing.T) {
	s := NewSession(bytes.NewReader(nil))
	_, err := s.PeekKind()
	assert.ErrorIs(t, err, io.EOF)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNextDrainsAllRecords(t *testing.T) {
	data := buildLog(t, LinuxLE64,
		Record{Kind: KindSockname, Payload: make([]byte, 16)},
		Record{Kind: KindPacket, Payload: []byte{1, 2}},
		Record{Kind: KindTimeout, Payload: nil},
	)
	s := NewSession(bytes.NewReader(data))

	var got []Record
	for {
		rec, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 3)
	assert.Equal(t, KindSockname, got[0].Kind)
	assert.Equal(t, KindPacket, got[1].Kind)
	assert.Equal(t, []byte{1, 2}, got[1].Payload)
	assert.Equal(t, KindTimeout, got[2].Kind)
	assert.Empty(t, got[2].Payload)
}

func TestWriterSticksOnError(t *testing.T) {
	w := NewWriter(failingWriter{})
	err := w.Write(KindPacket, bytes.Repeat([]byte{1}, 8192))
	if err == nil {
		// Small payloads may sit in the buffer until Flush.
		err = w.Flush()
	}
	require.Error(t, err)
	var we *WriteError
	assert.ErrorAs(t, err, &we)

	// Every later call reports the same session failure.
	assert.Error(t, w.Write(KindTimeout, nil))
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestReadSockaddrTyped(t *testing.T) {
	sa := Sockaddr{Family: FamilyIPv4, Addr: mustAddr(t, "192.0.2.1"), Port: 33434}
	data := buildLog(t, LinuxLE64, Record{Kind: KindSockname, Payload: EncodeSockaddr(LinuxLE64, sa)})

	s := NewSession(bytes.NewReader(data))
	got, err := s.ReadSockaddr(KindSockname)
	require.NoError(t, err)
	assert.Equal(t, FamilyIPv4, got.Family)
	assert.Equal(t, sa.Addr, got.Addr)
	assert.Equal(t, sa.Port, got.Port)
}

func TestReadTimevalTyped(t *testing.T) {
	tv := Timeval{Sec: 1718000000, Usec: 250000}
	data := buildLog(t, LinuxLE64, Record{Kind: KindTimeofday, Payload: EncodeTimeval(LinuxLE64, tv)})

	s := NewSession(bytes.NewReader(data))
	got, err := s.ReadTimeval(KindTimeofday)
	require.NoError(t, err)
	assert.Equal(t, tv, got)
}
