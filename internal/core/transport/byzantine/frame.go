package byzantine

import (
	"io"

	"github.com/multiformats/go-varint"
)

var errShortBuffer = io.ErrShortBuffer

func encodeFrame(kind byte, id uint64, payload []byte) []byte {
	frame := make([]byte, 1+varint.UvarintSize(id)+len(payload))
	frame[0] = kind
	n := varint.PutUvarint(frame[1:], id)
	copy(frame[1+n:], payload)
	return frame
}

func decodeFrame(b []byte) (kind byte, id uint64, payload []byte, ok bool) {
	if len(b) < 2 {
		return 0, 0, nil, false
	}
	kind = b[0]
	switch kind {
	case frameData, frameAck, frameNack, frameKeepalive, frameClose:
	default:
		return 0, 0, nil, false
	}
	id, n, err := varint.FromUvarint(b[1:])
	if err != nil {
		return 0, 0, nil, false
	}
	return kind, id, b[1+n:], true
}
