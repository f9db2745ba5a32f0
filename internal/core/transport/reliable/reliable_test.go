package reliable

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pnet/internal/core/transport/byzantine"
	"github.com/dep2p/go-p2pnet/internal/core/transport/checking"
	"github.com/dep2p/go-p2pnet/internal/core/transport/memory"
	"github.com/dep2p/go-p2pnet/internal/core/transport/sequencing"
	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

var (
	addrA = types.MustParseAddress("/memory/a")
	addrB = types.MustParseAddress("/memory/b")
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Byzantine.RetryTimeout = 5 * time.Millisecond
	cfg.Byzantine.MaxRetryTimeout = 20 * time.Millisecond
	cfg.Byzantine.MaxRetries = 20
	return cfg
}

func reliablePair(t *testing.T, fa, fb memory.Faults) (*Transport, *Transport) {
	t.Helper()
	return reliablePairWith(t, testConfig(), fa, fb)
}

func reliablePairWith(t *testing.T, cfg Config, fa, fb memory.Faults) (*Transport, *Transport) {
	t.Helper()
	hub := memory.NewHub()
	la, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrA, Remote: addrB, Faults: fa})
	require.NoError(t, err)
	lb, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrB, Remote: addrA, Faults: fb})
	require.NoError(t, err)

	a, err := New(la, cfg)
	require.NoError(t, err)
	b, err := New(lb, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestReliable_UnderAllFaults(t *testing.T) {
	faults := memory.Faults{Drop: 0.1, Duplicate: 0.1, Corrupt: 0.1, Reorder: 0.1}
	fa, fb := faults, faults
	fa.Seed, fb.Seed = 1, 2
	a, b := reliablePair(t, fa, fb)

	const total = 200
	go func() {
		for i := 0; i < total; i++ {
			if _, err := a.Send(context.Background(), []byte{byte(i)}); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	buf := make([]byte, b.MaxUnitSize())
	for i := 0; i < total; i++ {
		n, err := b.Recv(ctx, buf)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		assert.Equal(t, byte(i), buf[0])
	}

	assert.Zero(t, b.SequenceStats().Gaps)
	assert.Zero(t, a.RetryStats().Exhausted)
	assert.NotZero(t, a.RetryStats().Retransmits)
}

func TestReliable_MaxUnitSize(t *testing.T) {
	a, _ := reliablePair(t, memory.Faults{}, memory.Faults{})
	assert.Less(t, a.MaxUnitSize(), memory.DefaultMTU-checking.DigestSize)
	assert.Positive(t, a.MaxUnitSize())
}

func TestNew_LowerTooSmall(t *testing.T) {
	hub := memory.NewHub()
	la, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrA, Remote: addrB, MTU: 16})
	require.NoError(t, err)
	_, err = New(la, DefaultConfig())
	var ie *transport.InitError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, transport.ErrUnitTooLarge)
	assert.False(t, hub.Bound(addrA))
}

func TestCompose(t *testing.T) {
	hub := memory.NewHub()
	la, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrA, Remote: addrB})
	require.NoError(t, err)
	lb, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrB, Remote: addrA})
	require.NoError(t, err)

	chk, err := checking.New(la, checking.DefaultConfig())
	require.NoError(t, err)
	byz, err := byzantine.New(chk, byzantine.DefaultConfig())
	require.NoError(t, err)
	seq, err := sequencing.New(byz, sequencing.DefaultConfig())
	require.NoError(t, err)

	rt, err := Compose(seq, byz, chk)
	require.NoError(t, err)
	defer rt.Close()

	// 另一条链上的校验层
	otherChk, err := checking.New(lb, checking.DefaultConfig())
	require.NoError(t, err)
	defer otherChk.Close()

	_, err = Compose(seq, byz, otherChk)
	assert.ErrorIs(t, err, transport.ErrLayering)

	// 排序层直接叠在校验层上，跳过了确认层
	skip, err := sequencing.New(chk, sequencing.DefaultConfig())
	require.NoError(t, err)
	_, err = Compose(skip, byz, chk)
	assert.ErrorIs(t, err, transport.ErrLayering)

	_, err = Compose(nil, byz, chk)
	assert.ErrorIs(t, err, transport.ErrLayering)
}

func streamPair(t *testing.T, fa, fb memory.Faults) (*Stream, *Stream) {
	t.Helper()
	a, b := reliablePair(t, fa, fb)
	sa := NewStream(a, addrA, addrB)
	sb := NewStream(b, addrB, addrA)
	t.Cleanup(func() {
		sa.Close()
		sb.Close()
	})
	return sa, sb
}

func TestStream_LargeTransferAndEOF(t *testing.T) {
	sa, sb := streamPair(t, memory.Faults{Drop: 0.05, Reorder: 0.05, Seed: 4}, memory.Faults{Duplicate: 0.05, Seed: 5})

	data := make([]byte, 64*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		if _, err := sa.Write(data); err != nil {
			errCh <- err
			return
		}
		errCh <- sa.CloseWrite()
	}()

	got, err := io.ReadAll(sb)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.True(t, bytes.Equal(data, got))

	// 写端关闭后不能再写
	_, err = sa.Write([]byte("late"))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestStream_HalfClose(t *testing.T) {
	sa, sb := streamPair(t, memory.Faults{}, memory.Faults{})

	require.NoError(t, sa.CloseWrite())
	n, err := sb.Read(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	// 反方向仍然可用
	_, err = sb.Write([]byte("reply"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err = sa.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "reply", string(buf[:n]))
}

func TestStream_CloseRead(t *testing.T) {
	sa, sb := streamPair(t, memory.Faults{}, memory.Faults{})

	require.NoError(t, sb.CloseRead())
	_, err := sb.Read(make([]byte, 8))
	assert.ErrorIs(t, err, transport.ErrClosed)

	// 对端写入不会因无人读取而阻塞
	for i := 0; i < 10; i++ {
		_, err := sa.Write(bytes.Repeat([]byte{1}, 4096))
		require.NoError(t, err)
	}
}

func TestStream_Close(t *testing.T) {
	called := 0
	a, b := reliablePair(t, memory.Faults{}, memory.Faults{})
	sa := NewStream(a, addrA, addrB, WithOnClose(func() { called++ }))
	sb := NewStream(b, addrB, addrA)
	defer sb.Close()

	assert.Equal(t, addrA, sa.LocalAddress())
	assert.Equal(t, addrB, sa.RemoteAddress())

	require.NoError(t, sa.Close())
	require.NoError(t, sa.Close())
	assert.Equal(t, 1, called)

	// Close 发送了 FIN
	_, err := sb.Read(make([]byte, 8))
	assert.ErrorIs(t, err, io.EOF)

	_, err = sa.Write([]byte("x"))
	assert.ErrorIs(t, err, transport.ErrClosed)
	_, err = sa.Read(make([]byte, 8))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestStream_CloseUnblocksRead(t *testing.T) {
	sa, _ := streamPair(t, memory.Faults{}, memory.Faults{})

	done := make(chan error, 1)
	go func() {
		_, err := sa.Read(make([]byte, 8))
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	sa.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, transport.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Read 未被 Close 唤醒")
	}
}

func TestStream_WriteFailureEndsPeerRead(t *testing.T) {
	cfg := testConfig()
	cfg.Byzantine.MaxRetries = 2
	cfg.Byzantine.InboxSize = 1
	a, b := reliablePairWith(t, cfg, memory.Faults{}, memory.Faults{})
	sa := NewStream(a, addrA, addrB)
	sb := NewStream(b, addrB, addrA)
	defer sb.Close()

	// 对端不读，接收队列占满后写入耗尽重传预算
	_, err := sa.Write([]byte("first"))
	require.NoError(t, err)
	_, err = sa.Write([]byte("second"))
	require.ErrorIs(t, err, transport.ErrRetryExhausted)

	// 本端后续读写报告同一个错误
	_, err = sa.Write([]byte("third"))
	assert.ErrorIs(t, err, transport.ErrRetryExhausted)
	_, err = sa.Read(make([]byte, 8))
	assert.ErrorIs(t, err, transport.ErrRetryExhausted)
	require.NoError(t, sa.Close())

	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(sb)
		done <- err
	}()
	select {
	case err := <-done:
		// 已确认的数据先交付，之后以明确错误结束而不是 EOF
		require.Error(t, err)
		assert.ErrorIs(t, err, transport.ErrPeerClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("写入失败后对端读取一直阻塞")
	}
}

func TestStream_PeerVanishes(t *testing.T) {
	cfg := testConfig()
	cfg.Byzantine.IdleTimeout = 200 * time.Millisecond
	hub := memory.NewHub()
	la, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrA, Remote: addrB})
	require.NoError(t, err)
	lb, err := memory.Create(context.Background(), memory.InitData{Hub: hub, Local: addrB, Remote: addrA})
	require.NoError(t, err)
	b, err := New(lb, cfg)
	require.NoError(t, err)
	sb := NewStream(b, addrB, addrA)
	defer sb.Close()

	// 对端进程消失：下层端点关闭，不发送任何关闭通知
	require.NoError(t, la.Close())

	done := make(chan error, 1)
	go func() {
		_, err := sb.Read(make([]byte, 8))
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, transport.ErrPeerSilent)
	case <-time.After(3 * time.Second):
		t.Fatal("对端静默后读取一直阻塞")
	}
}
