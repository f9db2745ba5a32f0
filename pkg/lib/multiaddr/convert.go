package multiaddr

import (
	"fmt"
	"net"
	"strconv"
)

// DialArgs 将 "/<ip|dns>/<host>/<tcp|udp>/<port>[...]" 前缀转换为 net.Dial 参数
//
// 返回 ("tcp4", "127.0.0.1:4001") 之类的结果，后缀组件（ws、quic-v1）被忽略。
func DialArgs(b []byte) (network, hostport string, err error) {
	comps, err := Components(b)
	if err != nil {
		return "", "", err
	}
	if len(comps) < 2 {
		return "", "", fmt.Errorf("%w: too few components", ErrNotNetAddr)
	}

	host, family := comps[0].Value(), ""
	switch comps[0].Protocol.Code {
	case P_IP4, P_DNS4:
		family = "4"
	case P_IP6, P_DNS6:
		family = "6"
	default:
		return "", "", fmt.Errorf("%w: %s", ErrNotNetAddr, comps[0].Protocol.Name)
	}

	switch comps[1].Protocol.Code {
	case P_TCP:
		network = "tcp" + family
	case P_UDP:
		network = "udp" + family
	default:
		return "", "", fmt.Errorf("%w: %s", ErrNotNetAddr, comps[1].Protocol.Name)
	}
	return network, net.JoinHostPort(host, comps[1].Value()), nil
}

// FromNetAddr 将 *net.TCPAddr / *net.UDPAddr 转换为二进制地址
//
// suffix 为追加的无数据协议名（如 "ws"、"quic-v1"）。
func FromNetAddr(a net.Addr, suffix ...string) ([]byte, error) {
	var (
		ip    net.IP
		port  int
		proto string
	)
	switch v := a.(type) {
	case *net.TCPAddr:
		ip, port, proto = v.IP, v.Port, "tcp"
	case *net.UDPAddr:
		ip, port, proto = v.IP, v.Port, "udp"
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotNetAddr, a)
	}

	s := ""
	if ip4 := ip.To4(); ip4 != nil {
		s = "/ip4/" + ip4.String()
	} else if ip.To16() != nil {
		s = "/ip6/" + ip.String()
	} else {
		return nil, fmt.Errorf("%w: no ip in %v", ErrNotNetAddr, a)
	}
	s += "/" + proto + "/" + strconv.Itoa(port)
	for _, p := range suffix {
		s += "/" + p
	}
	return StringToBytes(s)
}
