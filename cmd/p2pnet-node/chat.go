package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	netif "github.com/dep2p/go-p2pnet/pkg/interfaces/network"
	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
	"github.com/dep2p/go-p2pnet/pkg/lib/log"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// chat 把输入的每一行广播给所有连接，并打印收到的行
type chat struct {
	out io.Writer

	mu    sync.Mutex
	conns map[types.NodeID]*netif.Connection
}

func newChat(out io.Writer) *chat {
	return &chat{
		out:   out,
		conns: make(map[types.NodeID]*netif.Connection),
	}
}

// serve 消费 incoming 流直到 ctx 取消或流结束
func (c *chat) serve(ctx context.Context, in netif.Incoming) error {
	defer c.closeAll()
	for {
		r, err := in.Next(ctx)
		if err != nil {
			return err
		}
		if r.Err != nil {
			c.printf("[连接失败] %s %s: %v\n", r.Direction, r.Address, r.Err)
			continue
		}
		c.add(r.Conn)
	}
}

func (c *chat) add(conn *netif.Connection) {
	id, err := crypto.NodeIDFromPublicKey(conn.RemotePubKey)
	if err != nil {
		logger.Warn("无法计算对端 ID", "error", err)
		conn.Close()
		return
	}

	c.mu.Lock()
	if old, ok := c.conns[id]; ok {
		old.Close()
	}
	c.conns[id] = conn
	c.mu.Unlock()

	c.printf("[已连接] %s (%s)\n", id.ShortString(), conn.NetAddress)
	go c.readLoop(id, conn)
}

func (c *chat) readLoop(id types.NodeID, conn *netif.Connection) {
	sc := bufio.NewScanner(conn.Read)
	for sc.Scan() {
		c.printf("%s> %s\n", id.ShortString(), sc.Text())
	}
	if err := sc.Err(); err != nil {
		logger.Debug("读取结束", "remote", log.TruncateID(id.String(), 8), "error", err)
	}
	c.remove(id, conn)
	c.printf("[已断开] %s\n", id.ShortString())
}

// readInput 逐行读取输入并广播
func (c *chat) readInput(ctx context.Context, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		c.broadcast(sc.Text())
	}
}

func (c *chat) broadcast(line string) {
	c.mu.Lock()
	targets := make(map[types.NodeID]*netif.Connection, len(c.conns))
	for id, conn := range c.conns {
		targets[id] = conn
	}
	c.mu.Unlock()

	for id, conn := range targets {
		if _, err := io.WriteString(conn.Write, line+"\n"); err != nil {
			logger.Debug("发送失败", "remote", log.TruncateID(id.String(), 8), "error", err)
			c.remove(id, conn)
		}
	}
}

func (c *chat) remove(id types.NodeID, conn *netif.Connection) {
	c.mu.Lock()
	if cur, ok := c.conns[id]; ok && cur == conn {
		delete(c.conns, id)
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *chat) closeAll() {
	c.mu.Lock()
	conns := c.conns
	c.conns = make(map[types.NodeID]*netif.Connection)
	c.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

func (c *chat) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

func (c *chat) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
