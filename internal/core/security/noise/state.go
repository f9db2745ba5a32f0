package noise

import (
	"fmt"
	"io"

	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/hkdf"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-p2pnet/pkg/types"
)

// secretSize 恢复秘密长度
const secretSize = 32

const resumeInfo = "p2pnet resume"

// 恢复状态字段
const (
	stateFieldEpoch  protowire.Number = 1
	stateFieldSecret protowire.Number = 2
)

// resumeState 恢复状态
type resumeState struct {
	epoch  uint64
	secret []byte
}

func (s resumeState) valid() bool {
	return s.epoch > 0 && len(s.secret) == secretSize
}

func (s resumeState) encode() types.PersistentState {
	b := protowire.AppendTag(nil, stateFieldEpoch, protowire.VarintType)
	b = protowire.AppendVarint(b, s.epoch)
	b = protowire.AppendTag(b, stateFieldSecret, protowire.BytesType)
	b = protowire.AppendBytes(b, s.secret)
	return types.PersistentState(b)
}

// decodeState 解析恢复状态，空状态返回零值
func decodeState(st types.PersistentState) (resumeState, error) {
	var s resumeState
	b := []byte(st)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return resumeState{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == stateFieldEpoch && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return resumeState{}, protowire.ParseError(n)
			}
			s.epoch, b = v, b[n:]
		case num == stateFieldSecret && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return resumeState{}, protowire.ParseError(n)
			}
			s.secret, b = append([]byte(nil), v...), b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return resumeState{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if len(st) > 0 && !s.valid() {
		return resumeState{}, fmt.Errorf("noise: incomplete resumption state")
	}
	return s, nil
}

// ratchet 派生下一状态
//
// resumed 为真时纪元加一并以上一秘密为盐，否则从纪元 1 开始。
func ratchet(prev resumeState, resumed bool, binding []byte) (resumeState, error) {
	next := resumeState{epoch: 1}
	var salt []byte
	if resumed {
		next.epoch = prev.epoch + 1
		salt = prev.secret
	}
	next.secret = make([]byte, secretSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, binding, salt, []byte(resumeInfo)), next.secret); err != nil {
		return resumeState{}, err
	}
	return next, nil
}
