package probe

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netreplay/pkg/response"
)

func TestSockaddrFromIP(t *testing.T) {
	sa, err := sockaddrFromIP(net.ParseIP("192.0.2.1"), 33434)
	require.NoError(t, err)
	assert.Equal(t, response.FamilyIPv4, sa.Family)
	assert.Equal(t, "192.0.2.1", sa.Addr.String())
	assert.Equal(t, uint16(33434), sa.Port)

	sa, err = sockaddrFromIP(net.ParseIP("2001:db8::1"), 0)
	require.NoError(t, err)
	assert.Equal(t, response.FamilyIPv6, sa.Family)
	assert.Equal(t, "2001:db8::1", sa.Addr.String())

	_, err = sockaddrFromIP(nil, 0)
	assert.Error(t, err)
}

func TestSockaddrFromIPRoundTripsThroughLayout(t *testing.T) {
	sa, err := sockaddrFromIP(net.ParseIP("10.1.2.3"), 4242)
	require.NoError(t, err)

	got := response.DecodeSockaddr(response.DefaultLayout,
		response.EncodeSockaddr(response.DefaultLayout, sa))
	assert.Equal(t, sa, got)
}
