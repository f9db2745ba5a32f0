package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeIncoming struct {
	results []netif.Result
}

func (f *fakeIncoming) Next(context.Context) (netif.Result, error) {
	if len(f.results) == 0 {
		return netif.Result{}, netif.ErrStreamClosed
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

func (f *fakeIncoming) Close() error { return nil }

func TestParseConnectTarget(t *testing.T) {
	_, pub, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	require.NoError(t, err)
	id, err := crypto.NodeIDFromPublicKey(pub)
	require.NoError(t, err)

	tgt, err := parseConnectTarget("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)
	assert.True(t, tgt.id.IsEmpty())
	assert.Equal(t, types.MustParseAddress("/ip4/127.0.0.1/tcp/4001"), tgt.addr)

	tgt, err = parseConnectTarget(id.String() + "@/memory/peer")
	require.NoError(t, err)
	assert.Equal(t, id, tgt.id)
	assert.Equal(t, types.MustParseAddress("/memory/peer"), tgt.addr)

	_, err = parseConnectTarget("not-an-id@/memory/peer")
	assert.Error(t, err)
	_, err = parseConnectTarget("garbage")
	assert.Error(t, err)

	var targets connectTargets
	require.NoError(t, targets.Set("/memory/a"))
	require.NoError(t, targets.Set("/memory/b"))
	assert.Equal(t, "/memory/a,/memory/b", targets.String())
}

func TestChat_RelaysLines(t *testing.T) {
	_, pub, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	require.NoError(t, err)

	peerRead, localWrite := io.Pipe()
	localRead, peerWrite := io.Pipe()
	conn := &netif.Connection{
		NetAddress:   types.MustParseAddress("/memory/peer"),
		RemotePubKey: pub,
		Read:         localRead,
		Write:        localWrite,
	}

	out := &syncBuffer{}
	c := newChat(out)
	c.add(conn)
	assert.Equal(t, 1, c.count())

	go c.broadcast("hi")
	line, err := bufio.NewReader(peerRead).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hi\n", line)

	_, err = io.WriteString(peerWrite, "yo\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("> yo"))
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, peerWrite.Close())
	assert.Eventually(t, func() bool { return c.count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestChat_ServeReportsFailures(t *testing.T) {
	out := &syncBuffer{}
	c := newChat(out)
	in := &fakeIncoming{results: []netif.Result{{
		Address:   types.MustParseAddress("/memory/gone"),
		Direction: types.DirOutbound,
		Err:       &netif.ConnectionError{Op: "dial", Err: errors.New("refused")},
	}}}

	err := c.serve(context.Background(), in)
	assert.ErrorIs(t, err, netif.ErrStreamClosed)
	assert.Contains(t, out.String(), "/memory/gone")
	assert.Contains(t, out.String(), "refused")
}
