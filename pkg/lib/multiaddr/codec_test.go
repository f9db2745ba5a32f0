package multiaddr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToBytes_RoundTrip(t *testing.T) {
	addrs := []string{
		"/ip4/127.0.0.1/tcp/4001",
		"/ip6/::1/tcp/8080/ws",
		"/ip4/192.168.1.1/udp/4001/quic-v1",
		"/dns4/example.com/tcp/443",
		"/dns6/node.example.org/tcp/443/ws",
		"/ip6/::ffff:1.2.3.4/udp/9",
		"/memory/node-a",
	}

	for _, s := range addrs {
		t.Run(s, func(t *testing.T) {
			b, err := StringToBytes(s)
			require.NoError(t, err)

			back, err := BytesToString(b)
			require.NoError(t, err)
			assert.Equal(t, s, back)

			b2, err := StringToBytes(back)
			require.NoError(t, err)
			assert.Equal(t, b, b2)
		})
	}
}

func TestStringToBytes_Canonical(t *testing.T) {
	b, err := StringToBytes("/ip4/127.0.0.1/tcp/0080/")
	require.NoError(t, err)

	s, err := BytesToString(b)
	require.NoError(t, err)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/80", s)
}

func TestStringToBytes_Invalid(t *testing.T) {
	cases := map[string]error{
		"":                       ErrInvalidMultiaddr,
		"ip4/1.2.3.4":            ErrInvalidMultiaddr,
		"/ip4":                   ErrInvalidMultiaddr,
		"/ip4/1.2.3.4/tcp":       ErrInvalidMultiaddr,
		"/ip4/300.1.1.1/tcp/1":   ErrInvalidValue,
		"/ip6/1.2.3.4/tcp/1":     ErrInvalidValue,
		"/ip4/1.2.3.4/tcp/70000": ErrInvalidValue,
		"/foo/bar":               ErrUnknownProtocol,
		"/memory/a b":            ErrInvalidValue,
		"/dns4/exa mple.com":     ErrInvalidValue,
	}
	for in, want := range cases {
		_, err := StringToBytes(in)
		assert.ErrorIs(t, err, want, in)
	}
}

func TestComponents_Invalid(t *testing.T) {
	good, err := StringToBytes("/ip4/1.2.3.4/tcp/80")
	require.NoError(t, err)

	// 截断数据
	_, err = Components(good[:len(good)-1])
	assert.ErrorIs(t, err, ErrTruncated)

	// 未知协议代码
	_, err = Components([]byte{0x7f})
	assert.ErrorIs(t, err, ErrUnknownProtocol)

	// 空
	_, err = Components(nil)
	assert.ErrorIs(t, err, ErrInvalidMultiaddr)

	// 变长长度超出
	mem, err := StringToBytes("/memory/x")
	require.NoError(t, err)
	bad := append([]byte{}, mem...)
	bad[len(bad)-2] = 0x09
	_, err = Components(bad)
	assert.ErrorIs(t, err, ErrTruncated)

	// 非最小 varint 编码
	_, err = Components([]byte{0x84, 0x00, 1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrInvalidMultiaddr)
}

func TestValueForProtocol(t *testing.T) {
	b, err := StringToBytes("/ip4/10.0.0.1/udp/5000/quic-v1")
	require.NoError(t, err)

	v, err := ValueForProtocol(b, P_UDP)
	require.NoError(t, err)
	assert.Equal(t, "5000", v)

	_, err = ValueForProtocol(b, P_TCP)
	assert.ErrorIs(t, err, ErrNoSuchProtocol)

	names, err := ProtocolNames(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"ip4", "udp", "quic-v1"}, names)
}

func TestDialArgs(t *testing.T) {
	cases := []struct {
		addr, network, hostport string
	}{
		{"/ip4/127.0.0.1/tcp/4001", "tcp4", "127.0.0.1:4001"},
		{"/ip6/::1/tcp/80/ws", "tcp6", "[::1]:80"},
		{"/dns4/example.com/udp/9/quic-v1", "udp4", "example.com:9"},
	}
	for _, tc := range cases {
		b, err := StringToBytes(tc.addr)
		require.NoError(t, err)
		network, hostport, err := DialArgs(b)
		require.NoError(t, err)
		assert.Equal(t, tc.network, network)
		assert.Equal(t, tc.hostport, hostport)
	}

	mem, err := StringToBytes("/memory/a")
	require.NoError(t, err)
	_, _, err = DialArgs(mem)
	assert.ErrorIs(t, err, ErrNotNetAddr)
}

func TestFromNetAddr(t *testing.T) {
	b, err := FromNetAddr(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4001}, "ws")
	require.NoError(t, err)
	s, err := BytesToString(b)
	require.NoError(t, err)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/4001/ws", s)

	b, err = FromNetAddr(&net.UDPAddr{IP: net.IPv6loopback, Port: 7})
	require.NoError(t, err)
	s, err = BytesToString(b)
	require.NoError(t, err)
	assert.Equal(t, "/ip6/::1/udp/7", s)

	_, err = FromNetAddr(&net.UnixAddr{Name: "x"})
	assert.ErrorIs(t, err, ErrNotNetAddr)
}
