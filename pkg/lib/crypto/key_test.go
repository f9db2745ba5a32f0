package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyTypes = []KeyType{KeyTypeEd25519, KeyTypeSecp256k1}

func TestGenerateKeyPair_SignVerify(t *testing.T) {
	for _, kt := range keyTypes {
		t.Run(kt.String(), func(t *testing.T) {
			priv, pub, err := GenerateKeyPair(kt)
			require.NoError(t, err)
			assert.Equal(t, kt, pub.Type())
			assert.True(t, CheckKeyPair(priv, pub))

			msg := []byte("hello p2pnet")
			sig, err := priv.Sign(msg)
			require.NoError(t, err)

			ok, err := pub.Verify(msg, sig)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = pub.Verify([]byte("tampered"), sig)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, _ = pub.Verify(msg, []byte{1, 2, 3})
			assert.False(t, ok)
		})
	}
}

func TestGenerateKeyPair_BadType(t *testing.T) {
	_, _, err := GenerateKeyPair(KeyType(99))
	assert.ErrorIs(t, err, ErrBadKeyType)
}

func TestPublicKey_RoundTrip(t *testing.T) {
	for _, kt := range keyTypes {
		t.Run(kt.String(), func(t *testing.T) {
			_, pub, err := GenerateKeyPair(kt)
			require.NoError(t, err)

			// 二进制
			b, err := MarshalPublicKey(pub)
			require.NoError(t, err)
			assert.Equal(t, b, pub.Bytes())
			back, err := UnmarshalPublicKeyBytes(b)
			require.NoError(t, err)
			assert.True(t, pub.Equals(back))
			assert.Equal(t, b, back.Bytes())

			// 文本
			back2, err := PublicKeyFromString(pub.String())
			require.NoError(t, err)
			assert.True(t, pub.Equals(back2))
			assert.Equal(t, pub.String(), back2.String())
		})
	}
}

func TestUnmarshalPublicKeyBytes_Invalid(t *testing.T) {
	_, pub, err := GenerateKeyPair(KeyTypeEd25519)
	require.NoError(t, err)
	b := pub.Bytes()

	_, err = UnmarshalPublicKeyBytes(b[:3])
	assert.ErrorIs(t, err, ErrUnmarshalFailed)

	_, err = UnmarshalPublicKeyBytes(append(bytes.Clone(b), 0))
	assert.ErrorIs(t, err, ErrUnmarshalFailed)

	bad := bytes.Clone(b)
	bad[0] = 9
	_, err = UnmarshalPublicKeyBytes(bad)
	assert.ErrorIs(t, err, ErrBadKeyType)

	_, err = UnmarshalSecp256k1PublicKey(make([]byte, 33))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = PublicKeyFromString("0OIl")
	assert.ErrorIs(t, err, ErrUnmarshalFailed)
}

func TestPrivateKey_NotExported(t *testing.T) {
	for _, kt := range keyTypes {
		t.Run(kt.String(), func(t *testing.T) {
			priv, _, err := GenerateKeyPair(kt)
			require.NoError(t, err)
			raw, _ := priv.Raw()

			for _, s := range []string{
				priv.String(),
				fmt.Sprintf("%v", priv),
				fmt.Sprintf("%#v", priv),
			} {
				assert.Contains(t, s, "REDACTED")
				assert.NotContains(t, s, fmt.Sprintf("%x", raw))
			}

			_, err = json.Marshal(priv)
			assert.ErrorIs(t, err, ErrPrivateKeyExport)
		})
	}
}

func TestKeyFromBytes(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	a, err := Ed25519KeyFromSeed(seed)
	require.NoError(t, err)
	b, err := Ed25519KeyFromSeed(seed)
	require.NoError(t, err)
	assert.True(t, a.GetPublic().Equals(b.GetPublic()))

	_, err = Ed25519KeyFromSeed(seed[:5])
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	s, err := Secp256k1KeyFromBytes(seed)
	require.NoError(t, err)
	assert.Equal(t, KeyTypeSecp256k1, s.Type())

	_, err = Secp256k1KeyFromBytes(make([]byte, 32))
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestKeyEqual_CrossType(t *testing.T) {
	_, ed, err := GenerateKeyPair(KeyTypeEd25519)
	require.NoError(t, err)
	_, sk, err := GenerateKeyPair(KeyTypeSecp256k1)
	require.NoError(t, err)

	assert.False(t, ed.Equals(sk))
	assert.False(t, sk.Equals(ed))
	assert.False(t, KeyEqual(ed, nil))
}

func TestNodeIDFromPublicKey(t *testing.T) {
	priv, pub, err := GenerateKeyPair(KeyTypeEd25519)
	require.NoError(t, err)

	id1, err := NodeIDFromPublicKey(pub)
	require.NoError(t, err)
	id2, err := NodeIDFromPrivateKey(priv)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.False(t, id1.IsEmpty())
	assert.True(t, VerifyNodeID(pub, id1))

	_, other, err := GenerateKeyPair(KeyTypeEd25519)
	require.NoError(t, err)
	assert.False(t, VerifyNodeID(other, id1))

	_, err = NodeIDFromPublicKey(nil)
	assert.ErrorIs(t, err, ErrNilPublicKey)
}

func TestParseKeyType(t *testing.T) {
	kt, err := ParseKeyType("SECP256K1")
	require.NoError(t, err)
	assert.Equal(t, KeyTypeSecp256k1, kt)

	kt, err = ParseKeyType("")
	require.NoError(t, err)
	assert.Equal(t, KeyTypeEd25519, kt)

	_, err = ParseKeyType("rsa")
	assert.ErrorIs(t, err, ErrBadKeyType)
}

func TestPrivateKey_MarshalRoundTrip(t *testing.T) {
	for _, kt := range keyTypes {
		t.Run(kt.String(), func(t *testing.T) {
			priv, pub, err := GenerateKeyPair(kt)
			require.NoError(t, err)

			data, err := MarshalPrivateKey(priv)
			require.NoError(t, err)
			got, err := UnmarshalPrivateKey(data)
			require.NoError(t, err)
			assert.True(t, got.Equals(priv))
			assert.True(t, CheckKeyPair(got, pub))

			_, err = UnmarshalPrivateKey(data[:len(data)-1])
			assert.ErrorIs(t, err, ErrUnmarshalFailed)
		})
	}

	_, err := MarshalPrivateKey(nil)
	assert.ErrorIs(t, err, ErrNilPrivateKey)
	_, err = UnmarshalPrivateKey([]byte{99, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrBadKeyType)
}
