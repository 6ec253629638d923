package store

import (
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemory()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("k", []byte("v"), 0)
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemory()
	s.Set("k", []byte("v"), 10*time.Millisecond)

	_, ok := s.Get("k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestMemoryStore_CopiesValue(t *testing.T) {
	s := NewMemory()
	val := []byte("abc")
	s.Set("k", val, 0)
	val[0] = 'x'

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)
}

func TestRedisStore_GetSet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedis(client)

	mock.ExpectSet("ws:flow:crypto:BTCUSD", []byte(`{"state":"LAUNCH"}`), time.Minute).SetVal("OK")
	s.Set("ws:flow:crypto:BTCUSD", []byte(`{"state":"LAUNCH"}`), time.Minute)

	mock.ExpectGet("ws:flow:crypto:BTCUSD").SetVal(`{"state":"LAUNCH"}`)
	got, ok := s.Get("ws:flow:crypto:BTCUSD")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"state":"LAUNCH"}`), got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_MissReturnsFalse(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedis(client)

	mock.ExpectGet("nope").RedisNil()
	_, ok := s.Get("nope")
	assert.False(t, ok)
}
