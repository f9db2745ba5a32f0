// Package p2pnet 提供可插拔的点对点网络层
//
// 节点通过任意承载（真实套接字、进程内模拟链路）与其他节点建立经过
// 身份认证的加密字节流，节点逻辑不感知承载细节。
//
// # 快速开始
//
//	priv, pub, _ := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
//	node, in, err := p2pnet.Init(ctx, network.NetConfig{
//	    PrivateKey:  priv,
//	    PublicKey:   pub,
//	    ListenAddrs: []types.Address{types.MustParseAddress("/ip4/0.0.0.0/tcp/4001")},
//	})
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	node.Connect(remoteID, remoteAddr, remotePub, savedState)
//	for {
//	    r, err := in.Next(ctx)
//	    if err != nil {
//	        break // ErrStreamClosed
//	    }
//	    if r.Err != nil {
//	        continue // 单个连接失败，不影响其他连接
//	    }
//	    go serve(r.Conn)
//	}
//
// # 结构
//
//	┌───────────────────────────────────────────────────────────┐
//	│  p2pnet.Init (fx 组装)                                     │
//	├───────────────────────────────────────────────────────────┤
//	│  internal/core/network   Init / Connect / Listen / 流      │
//	│  internal/core/security  Noise XX 握手 + 会话恢复           │
//	│  internal/core/addrcodec 地址校验                           │
//	│  internal/core/metrics   Prometheus 指标                    │
//	├───────────────────────────────────────────────────────────┤
//	│  internal/core/transport tcp / websocket / quic / memnet  │
//	│    memnet = memory → checking → byzantine → sequencing    │
//	└───────────────────────────────────────────────────────────┘
package p2pnet
