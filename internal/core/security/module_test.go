package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-p2pnet/internal/core/security/noise"
	securityif "github.com/dep2p/go-p2pnet/pkg/interfaces/security"
	"github.com/dep2p/go-p2pnet/pkg/lib/crypto"
)

func TestModule_ProvidesFactory(t *testing.T) {
	var factory securityif.HandshakerFactory
	app := fxtest.New(t, Module(), fx.Populate(&factory))
	defer app.RequireStart().RequireStop()
	require.NotNil(t, factory)

	priv, _, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	require.NoError(t, err)
	h, err := factory(priv)
	require.NoError(t, err)
	assert.IsType(t, &noise.Handshaker{}, h)
}

func TestModule_WithConfig(t *testing.T) {
	cfg := noise.Config{ResumeCacheSize: 8}
	var factory securityif.HandshakerFactory
	app := fxtest.New(t, fx.Supply(&cfg), Module(), fx.Populate(&factory))
	defer app.RequireStart().RequireStop()

	_, err := factory(nil)
	assert.ErrorIs(t, err, crypto.ErrNilPrivateKey)
}
