package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	testConfig := Config{}
	testConfigFile := []byte(`
api:
  url: https://api.kairos.test
  timeout: 3s
websocket:
  url: wss://api.kairos.test
  pingInterval: 10s
  reconnect:
    initialDelay: 1s
    maxAttempts: 3
store:
  driver: redis
  redis:
    addr: dragonfly:6379
    db: 2
  publish: true
log:
  enable: true
  level: debug
  path: logs
`)

	require.NoError(t, testConfig.Load(testConfigFile))

	api, err := testConfig.GetApiSetting()
	require.NoError(t, err)
	assert.Equal(t, ApiSetting{URL: "https://api.kairos.test", Timeout: 3 * time.Second}, api)

	ws, err := testConfig.GetWebsocketSetting()
	require.NoError(t, err)
	assert.Equal(t, "wss://api.kairos.test", ws.URL)
	assert.Equal(t, 10*time.Second, ws.PingInterval)
	assert.Equal(t, time.Second, ws.Reconnect.InitialDelay)
	assert.Equal(t, 3, ws.Reconnect.MaxAttempts)
	// Defaults survive partial sections.
	assert.Equal(t, time.Minute, ws.Reconnect.MaxDelay)
	assert.Equal(t, 2.0, ws.Reconnect.Multiplier)

	store, err := testConfig.GetStoreSetting()
	require.NoError(t, err)
	assert.Equal(t, "redis", store.Driver)
	assert.Equal(t, "dragonfly:6379", store.Redis.Addr)
	assert.Equal(t, 2, store.Redis.DB)
	assert.Equal(t, "market_data", store.Channel)
	assert.True(t, store.Publish)

	logSetting, err := testConfig.GetLogSetting()
	require.NoError(t, err)
	assert.Equal(t, LogSetting{Enabled: true, Level: "debug", Path: "logs"}, logSetting)
}

func TestConfig_Defaults(t *testing.T) {
	testConfig := Config{}
	require.NoError(t, testConfig.Load([]byte(``)))

	api, err := testConfig.GetApiSetting()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", api.URL)

	store, err := testConfig.GetStoreSetting()
	require.NoError(t, err)
	assert.Equal(t, "memory", store.Driver)
}

func TestConfig_NotLoaded(t *testing.T) {
	testConfig := Config{}

	_, err := testConfig.GetApiSetting()
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = testConfig.GetWebsocketSetting()
	assert.ErrorIs(t, err, ErrNotLoaded)

	assert.ErrorIs(t, testConfig.ApplyEnv(), ErrNotLoaded)
}

func TestConfig_UnknownDriver(t *testing.T) {
	testConfig := Config{}
	assert.Error(t, testConfig.Load([]byte("store:\n  driver: etcd\n")))
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("KAIROS_API_URL", "http://env-api:9000")
	t.Setenv("KAIROS_WS_URL", "ws://env-api:9000")
	t.Setenv("KAIROS_LOG_LEVEL", "warn")
	t.Setenv("KAIROS_REDIS_ADDR", "env-redis:6379")

	testConfig := Config{}
	require.NoError(t, testConfig.Load([]byte("api:\n  url: http://file-api\n")))
	require.NoError(t, testConfig.ApplyEnv())

	api, err := testConfig.GetApiSetting()
	require.NoError(t, err)
	assert.Equal(t, "http://env-api:9000", api.URL)
	assert.Equal(t, 10*time.Second, api.Timeout)

	ws, err := testConfig.GetWebsocketSetting()
	require.NoError(t, err)
	assert.Equal(t, "ws://env-api:9000", ws.URL)

	store, err := testConfig.GetStoreSetting()
	require.NoError(t, err)
	assert.Equal(t, "env-redis:6379", store.Redis.Addr)

	logSetting, err := testConfig.GetLogSetting()
	require.NoError(t, err)
	assert.Equal(t, "warn", logSetting.Level)
}
