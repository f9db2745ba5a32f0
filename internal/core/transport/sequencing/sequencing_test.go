package sequencing

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pnet/internal/core/transport/memory"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

func memPair(t *testing.T, faults memory.Faults) (*memory.Transport, *memory.Transport) {
	t.Helper()
	hub := memory.NewHub()
	addrA := types.MustParseAddress("/memory/a")
	addrB := types.MustParseAddress("/memory/b")
	a, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrA, Remote: addrB, Faults: faults, InboxSize: 4096})
	require.NoError(t, err)
	b, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrB, Remote: addrA, InboxSize: 4096})
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

// rawSend 绕过排序层直接发送带指定序号的单元
func rawSend(t *testing.T, lower transport.LossyTransport, seq uint64, payload string) {
	t.Helper()
	frame := append(varint.ToUvarint(seq), payload...)
	_, err := lower.Send(context.Background(), frame)
	require.NoError(t, err)
}

func recvString(t *testing.T, s *Transport) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	buf := make([]byte, s.MaxUnitSize())
	n, err := s.Recv(ctx, buf)
	return string(buf[:n]), err
}

func TestSequencing_InOrder(t *testing.T) {
	la, lb := memPair(t, memory.Faults{})
	a, err := New(la, DefaultConfig())
	require.NoError(t, err)
	b, err := New(lb, DefaultConfig())
	require.NoError(t, err)

	for _, m := range []string{"one", "two", "three"} {
		_, err := a.Send(context.Background(), []byte(m))
		require.NoError(t, err)
	}
	for _, want := range []string{"one", "two", "three"} {
		got, err := recvString(t, b)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, uint64(3), b.SequenceStats().Delivered)
}

func TestSequencing_ReorderAndDuplicates(t *testing.T) {
	la, lb := memPair(t, memory.Faults{})
	b, err := New(lb, DefaultConfig())
	require.NoError(t, err)

	rawSend(t, la, 2, "c")
	rawSend(t, la, 0, "a")
	rawSend(t, la, 2, "c")
	rawSend(t, la, 1, "b")
	rawSend(t, la, 0, "a")
	rawSend(t, la, 3, "d")

	for _, want := range []string{"a", "b", "c", "d"} {
		got, err := recvString(t, b)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// 之后不应再交付任何单元
	_, err = recvString(t, b)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	st := b.SequenceStats()
	assert.Equal(t, uint64(4), st.Delivered)
	assert.Equal(t, uint64(2), st.Duplicates)
	assert.Equal(t, uint64(1), st.Reordered)
}

func TestSequencing_GapReportedOnce(t *testing.T) {
	la, lb := memPair(t, memory.Faults{})
	b, err := New(lb, Config{Window: 3})
	require.NoError(t, err)

	// 0、1 丢失
	rawSend(t, la, 2, "x")
	rawSend(t, la, 3, "y")
	rawSend(t, la, 4, "z")

	_, err = recvString(t, b)
	var gap *transport.GapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, uint64(0), gap.From)
	assert.Equal(t, uint64(1), gap.To)
	assert.Equal(t, uint64(2), gap.Missing())

	for _, want := range []string{"x", "y", "z"} {
		got, err := recvString(t, b)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// 迟到的 1 被视为重复
	rawSend(t, la, 1, "late")
	rawSend(t, la, 5, "w")
	got, err := recvString(t, b)
	require.NoError(t, err)
	assert.Equal(t, "w", got)

	st := b.SequenceStats()
	assert.Equal(t, uint64(1), st.Gaps)
	assert.Equal(t, uint64(2), st.Skipped)
	assert.Equal(t, uint64(1), st.Duplicates)
}

func TestSequencing_Malformed(t *testing.T) {
	la, lb := memPair(t, memory.Faults{})
	b, err := New(lb, DefaultConfig())
	require.NoError(t, err)

	// 非最小 varint
	_, err = la.Send(context.Background(), []byte{0x80, 0x00})
	require.NoError(t, err)
	rawSend(t, la, 0, "ok")

	got, err := recvString(t, b)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, uint64(1), b.SequenceStats().Malformed)
}

// 乱序与重复注入下，交付顺序严格递增且无重复
func TestSequencing_UnderFaults(t *testing.T) {
	la, lb := memPair(t, memory.Faults{Duplicate: 0.3, Reorder: 0.3, Seed: 11})
	a, err := New(la, DefaultConfig())
	require.NoError(t, err)
	b, err := New(lb, DefaultConfig())
	require.NoError(t, err)

	const total = 500
	for i := 0; i < total; i++ {
		msg := binary.BigEndian.AppendUint32(nil, uint32(i))
		_, err := a.Send(context.Background(), msg)
		require.NoError(t, err)
	}
	// 推出可能被扣留的最后一个单元
	_, err = a.Send(context.Background(), binary.BigEndian.AppendUint32(nil, total))
	require.NoError(t, err)

	last := -1
	for last < total-1 {
		got, err := recvString(t, b)
		if errors.Is(err, context.DeadlineExceeded) {
			break
		}
		require.NoError(t, err)
		v := int(binary.BigEndian.Uint32([]byte(got)))
		assert.Equal(t, last+1, v)
		last = v
	}
	assert.Equal(t, total-1, last)
	assert.Zero(t, b.SequenceStats().Gaps)
}

func TestSequencing_ShortBuffer(t *testing.T) {
	la, lb := memPair(t, memory.Faults{})
	b, err := New(lb, DefaultConfig())
	require.NoError(t, err)

	rawSend(t, la, 0, "0123456789")
	rawSend(t, la, 1, "ok")

	_, err = b.Recv(context.Background(), make([]byte, 2))
	assert.ErrorIs(t, err, io.ErrShortBuffer)
	got, err := recvString(t, b)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
