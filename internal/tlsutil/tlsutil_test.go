package tlsutil

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_AEADOnly(t *testing.T) {
	cfg := Config()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.ElementsMatch(t, aeadSuites, cfg.CipherSuites)

	// 修改返回值不影响后续调用
	cfg.CipherSuites[0] = 0
	assert.Equal(t, aeadSuites[0], Config().CipherSuites[0])
}

func TestHTTPClient(t *testing.T) {
	c := HTTPClient(15 * time.Second)
	assert.Equal(t, 15*time.Second, c.Timeout)

	tr := Transport()
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.ForceAttemptHTTP2)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
}

func TestRedis(t *testing.T) {
	assert.Nil(t, Redis(false, "cache.internal"))

	cfg := Redis(true, "cache.internal")
	require.NotNil(t, cfg)
	assert.Equal(t, "cache.internal", cfg.ServerName)
}
