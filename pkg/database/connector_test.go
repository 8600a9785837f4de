package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConnector(t *testing.T, c Connector) {
	t.Helper()
	ctx := context.Background()

	testString := "testing1234567890"

	require.NoError(t, c.Set(ctx, "kairos:test:key", &testString))

	dataStringPointer, err := c.Get(ctx, "kairos:test:key")
	require.NoError(t, err)
	assert.Equal(t, testString, *dataStringPointer)

	require.NoError(t, c.Delete(ctx, "kairos:test:key"))

	_, err = c.Get(ctx, "kairos:test:key")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.ErrorIs(t, c.Delete(ctx, "kairos:test:key"), ErrKeyNotFound)
}

func TestConnector_InternalConnector(t *testing.T) {
	testConnector(t, NewInternalConnector())
}

func TestConnector_InternalPublish(t *testing.T) {
	c := NewInternalConnector()
	listener := c.Listen("market_data", 1)

	require.NoError(t, c.Publish(context.Background(), "market_data", []byte(`{"type":"tick"}`)))
	// Full listener is skipped rather than blocking.
	require.NoError(t, c.Publish(context.Background(), "market_data", []byte(`{"type":"tick"}`)))
	require.NoError(t, c.Publish(context.Background(), "other", []byte(`{}`)))

	select {
	case payload := <-listener:
		assert.JSONEq(t, `{"type":"tick"}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("no payload published")
	}

	assert.Len(t, listener, 0)
}

// Needs a reachable Redis; set KAIROS_TEST_REDIS_ADDR to run it.
func TestConnector_RedisConnector(t *testing.T) {
	addr := os.Getenv("KAIROS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KAIROS_TEST_REDIS_ADDR not set")
	}

	c := NewRedisConnector(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	defer c.Close()

	require.NoError(t, c.Ping(context.Background()))
	testConnector(t, c)
	assert.NoError(t, c.Publish(context.Background(), "kairos_test", []byte("ping")))
}
