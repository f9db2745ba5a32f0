package noise

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// staticKeyPrefix 静态密钥签名前缀
const staticKeyPrefix = "p2pnet-noise-static-key:"

// claimPrefix 恢复声明校验值的前缀
const claimPrefix = "p2pnet-noise-resume-claim:"

// prologue 双方必须一致的握手序言
const prologue = "/p2pnet/noise/1"

// maxFrameSize 单帧密文上限
const maxFrameSize = 65535

// maxPlaintext 单帧明文上限（减去 Poly1305 标签）
const maxPlaintext = maxFrameSize - 16

// ============================================================================
//                              握手 payload
// ============================================================================

const (
	payloadFieldIdentityKey protowire.Number = 1
	payloadFieldIdentitySig protowire.Number = 2
	payloadFieldEpoch       protowire.Number = 3
	payloadFieldClaim       protowire.Number = 4
)

// payload 握手身份与恢复声明
//
// claim 是发起方所持秘密的校验值，响应方据此判断双方是否持有同一秘密。
type payload struct {
	identityKey []byte
	identitySig []byte
	epoch       uint64
	claim       []byte
}

func (p payload) marshal() []byte {
	b := protowire.AppendTag(nil, payloadFieldIdentityKey, protowire.BytesType)
	b = protowire.AppendBytes(b, p.identityKey)
	b = protowire.AppendTag(b, payloadFieldIdentitySig, protowire.BytesType)
	b = protowire.AppendBytes(b, p.identitySig)
	if p.epoch > 0 {
		b = protowire.AppendTag(b, payloadFieldEpoch, protowire.VarintType)
		b = protowire.AppendVarint(b, p.epoch)
	}
	if len(p.claim) > 0 {
		b = protowire.AppendTag(b, payloadFieldClaim, protowire.BytesType)
		b = protowire.AppendBytes(b, p.claim)
	}
	return b
}

func unmarshalPayload(b []byte) (payload, error) {
	var p payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == payloadFieldIdentityKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			p.identityKey, b = v, b[n:]
		case num == payloadFieldIdentitySig && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			p.identitySig, b = v, b[n:]
		case num == payloadFieldEpoch && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			p.epoch, b = v, b[n:]
		case num == payloadFieldClaim && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			p.claim, b = v, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if len(p.identityKey) == 0 || len(p.identitySig) == 0 {
		return payload{}, fmt.Errorf("%w: missing identity", ErrInvalidPayload)
	}
	return p, nil
}

// ============================================================================
//                              恢复确认
// ============================================================================

const (
	resumeFieldEpoch protowire.Number = 1
	resumeFieldCheck protowire.Number = 2
)

// resumeCheckSize 秘密校验值长度
const resumeCheckSize = 8

func marshalResume(epoch uint64, check []byte) []byte {
	b := protowire.AppendTag(nil, resumeFieldEpoch, protowire.VarintType)
	b = protowire.AppendVarint(b, epoch)
	b = protowire.AppendTag(b, resumeFieldCheck, protowire.BytesType)
	return protowire.AppendBytes(b, check)
}

func unmarshalResume(b []byte) (epoch uint64, check []byte, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == resumeFieldEpoch && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
			epoch, b = v, b[n:]
		case num == resumeFieldCheck && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
			check, b = v, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return epoch, check, nil
}

// ============================================================================
//                              帧
// ============================================================================

// writeFrame 写入帧（2 字节长度 + 数据），一次 Write 完成
func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

// readFrame 读取帧，空帧返回 nil
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(lenBuf[:])
	if length == 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return data, nil
}

// readHandshakeFrame 握手期间不允许空帧
func readHandshakeFrame(r io.Reader) ([]byte, error) {
	data, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrUnexpectedEOF
	}
	return data, nil
}
