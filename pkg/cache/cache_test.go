package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/client"
)

type mockVision struct {
	invokeFn func(ctx context.Context, model, prompt string, image []byte, opts client.Options) (string, error)
	calls    int
}

func (m *mockVision) Invoke(ctx context.Context, model, prompt string, image []byte, opts client.Options) (string, error) {
	m.calls++
	if m.invokeFn != nil {
		return m.invokeFn(ctx, model, prompt, image, opts)
	}
	return "", nil
}

func (m *mockVision) Ping(context.Context) error { return nil }

func (m *mockVision) Models(context.Context) ([]string, error) { return []string{"m"}, nil }

func TestNewDefaults(t *testing.T) {
	c := New(nil, &mockVision{}, 0, "")
	assert.Equal(t, DefaultTTL, c.ttl)
	assert.Equal(t, DefaultNamespace, c.namespace)

	c = New(nil, &mockVision{}, time.Minute, "custom")
	assert.Equal(t, time.Minute, c.ttl)
	assert.Equal(t, "custom", c.namespace)
}

func TestInvokeNilRedisBypasses(t *testing.T) {
	inner := &mockVision{invokeFn: func(context.Context, string, string, []byte, client.Options) (string, error) {
		return "reply", nil
	}}
	c := New(nil, inner, time.Minute, "")

	out, err := c.Invoke(context.Background(), "m", "p", nil, client.Options{})
	require.NoError(t, err)
	assert.Equal(t, "reply", out)
	assert.Equal(t, 1, inner.calls)
}

func TestInvokeCacheHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	inner := &mockVision{}
	c := New(rdb, inner, time.Minute, "test")
	opts := client.Options{Temperature: 0.1, JSON: true}
	key := c.Key("m", "p", []byte{1, 2, 3}, opts)

	mock.ExpectGet(key).SetVal(`{"item_code":"PA-0425"}`)

	out, err := c.Invoke(context.Background(), "m", "p", []byte{1, 2, 3}, opts)
	require.NoError(t, err)
	assert.Equal(t, `{"item_code":"PA-0425"}`, out)
	assert.Equal(t, 0, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeCacheMissStores(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	inner := &mockVision{invokeFn: func(context.Context, string, string, []byte, client.Options) (string, error) {
		return "fresh", nil
	}}
	c := New(rdb, inner, time.Minute, "test")
	key := c.Key("m", "p", nil, client.Options{})

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, "fresh", time.Minute).SetVal("OK")

	out, err := c.Invoke(context.Background(), "m", "p", nil, client.Options{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", out)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeErrorNotCached(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	boom := errors.New("backend down")
	inner := &mockVision{invokeFn: func(context.Context, string, string, []byte, client.Options) (string, error) {
		return "", boom
	}}
	c := New(rdb, inner, time.Minute, "test")
	key := c.Key("m", "p", nil, client.Options{})

	mock.ExpectGet(key).RedisNil()

	_, err := c.Invoke(context.Background(), "m", "p", nil, client.Options{})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeRedisFailureFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	inner := &mockVision{invokeFn: func(context.Context, string, string, []byte, client.Options) (string, error) {
		return "fresh", nil
	}}
	c := New(rdb, inner, time.Minute, "test")
	key := c.Key("m", "p", nil, client.Options{})

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, "fresh", time.Minute).SetErr(errors.New("connection refused"))

	out, err := c.Invoke(context.Background(), "m", "p", nil, client.Options{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyDistinguishesInputs(t *testing.T) {
	c := New(nil, &mockVision{}, 0, "ns")
	base := c.Key("m", "p", []byte{1}, client.Options{Temperature: 0.1})

	assert.Equal(t, base, c.Key("m", "p", []byte{1}, client.Options{Temperature: 0.1}))
	assert.NotEqual(t, base, c.Key("m2", "p", []byte{1}, client.Options{Temperature: 0.1}))
	assert.NotEqual(t, base, c.Key("m", "p2", []byte{1}, client.Options{Temperature: 0.1}))
	assert.NotEqual(t, base, c.Key("m", "p", []byte{2}, client.Options{Temperature: 0.1}))
	assert.NotEqual(t, base, c.Key("m", "p", []byte{1}, client.Options{Temperature: 0.7}))
	assert.NotEqual(t, base, c.Key("m", "p", []byte{1}, client.Options{Temperature: 0.1, JSON: true}))
	assert.NotEqual(t, c.Key("ab", "c", nil, client.Options{}), c.Key("a", "bc", nil, client.Options{}))
	assert.Contains(t, base, "ns:")
}

func TestPassThrough(t *testing.T) {
	c := New(nil, &mockVision{}, 0, "")
	require.NoError(t, c.Ping(context.Background()))
	models, err := c.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, models)
}
