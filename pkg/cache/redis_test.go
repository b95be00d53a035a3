package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-sync-api/pkg/config"
)

func TestNewRedisPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	host, rawPort, _ := strings.Cut(mr.Addr(), ":")
	port, err := strconv.Atoi(rawPort)
	require.NoError(t, err)

	client, err := NewRedis(context.Background(), config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, rawPort, _ := strings.Cut(mr.Addr(), ":")
	port, _ := strconv.Atoi(rawPort)
	mr.Close()

	_, err := NewRedis(context.Background(), config.RedisConfig{Host: host, Port: port})
	require.Error(t, err)
}
