package redis

import (
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
)

func TestChunks(t *testing.T) {
	keys := make([]string, 250)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	got := chunks(keys, 100)
	assert.Len(t, got, 3)
	assert.Len(t, got[0], 100)
	assert.Len(t, got[2], 50)
	assert.Equal(t, "k249", got[2][49])

	assert.Empty(t, chunks(nil, 100))
	assert.Len(t, chunks(keys[:100], 100), 1)
}

func TestIsNilError(t *testing.T) {
	assert.True(t, IsNilError(redis.Nil))
	assert.True(t, IsNilError(fmt.Errorf("get: %w", redis.Nil)))
	assert.False(t, IsNilError(fmt.Errorf("i/o timeout")))
	assert.False(t, IsNilError(nil))
}

func TestOptions(t *testing.T) {
	o := options(config.RedisConfig{Addr: "localhost:6379", DB: 2, PoolSize: 8})
	assert.Equal(t, "localhost:6379", o.Addr)
	assert.Equal(t, 2, o.DB)
	assert.Equal(t, 8, o.PoolSize)
	assert.Equal(t, 500*time.Millisecond, o.ReadTimeout)
}
