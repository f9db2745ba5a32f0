package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dep2p/go-p2pnet/config"
	"github.com/dep2p/go-p2pnet/pkg/types"
)

// ============================================================================
//                              环境变量（CLI 专用）
// ============================================================================

const (
	envPrefix       = "P2PNET_"
	envListenAddrs  = "LISTEN_ADDRS"
	envIdentityFile = "IDENTITY_KEY_FILE"
	envLogLevel     = "LOG_LEVEL"
	envLogFile      = "LOG_FILE"
	envEnableMemory = "ENABLE_MEMORY"
	envEnableUDP    = "ENABLE_UDP"
	envInboundRate  = "INBOUND_RATE"
)

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv(envPrefix + envListenAddrs); v != "" {
		cfg.ListenAddrs = splitAndTrim(v, ",")
	}
	if v := os.Getenv(envPrefix + envIdentityFile); v != "" {
		cfg.Identity.KeyFile = v
	}
	if v := os.Getenv(envPrefix + envLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(envPrefix + envLogFile); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv(envPrefix + envEnableMemory); v != "" {
		cfg.Transport.EnableMemory = parseBool(v)
	}
	if v := os.Getenv(envPrefix + envEnableUDP); v != "" {
		cfg.Transport.EnableUDP = parseBool(v)
	}
	if v := os.Getenv(envPrefix + envInboundRate); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Network.InboundRate = r
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// ============================================================================
//                              -connect 目标
// ============================================================================

type connectTarget struct {
	id   types.NodeID
	addr types.Address
}

// connectTargets 可重复的 -connect 参数
//
// 形式为 [<node-id>@]<multiaddr>；省略 node-id 时接受对端出示的任意身份。
type connectTargets []connectTarget

func (c *connectTargets) String() string {
	parts := make([]string, 0, len(*c))
	for _, t := range *c {
		parts = append(parts, t.addr.String())
	}
	return strings.Join(parts, ",")
}

func (c *connectTargets) Set(s string) error {
	t, err := parseConnectTarget(s)
	if err != nil {
		return err
	}
	*c = append(*c, t)
	return nil
}

func parseConnectTarget(s string) (connectTarget, error) {
	var t connectTarget
	addrPart := s
	if at := strings.Index(s, "@"); at >= 0 {
		id, err := types.ParseNodeID(s[:at])
		if err != nil {
			return t, fmt.Errorf("node id %q: %w", s[:at], err)
		}
		t.id = id
		addrPart = s[at+1:]
	}
	addr, err := types.ParseAddress(addrPart)
	if err != nil {
		return t, err
	}
	t.addr = addr
	return t, nil
}
