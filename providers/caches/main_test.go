package caches

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	getHits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.getHits++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	val, found := f.data[key]
	return val, found, nil
}

func (f *fakeStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func TestGetOrFetchHitSkipsFetch(t *testing.T) {
	store := newFakeStore()
	store.data["stop:1000:arrivals"] = []byte(`{"72:1700000000000":{}}`)
	cache := NewReadThrough(store, time.Minute)

	fetchCalls := 0
	payload, err := cache.GetOrFetch(context.Background(), "stop:1000:arrivals", func(ctx context.Context) ([]byte, error) {
		fetchCalls++
		return []byte("fresh"), nil
	})

	require.NoError(t, err)
	require.Equal(t, []byte(`{"72:1700000000000":{}}`), payload)
	require.Zero(t, fetchCalls)
}

func TestGetOrFetchMissFetchesAndWritesWithTTL(t *testing.T) {
	store := newFakeStore()
	cache := NewReadThrough(store, time.Minute)

	fetchCalls := 0
	payload, err := cache.GetOrFetch(context.Background(), "stop:1000:arrivals", func(ctx context.Context) ([]byte, error) {
		fetchCalls++
		return []byte("fresh"), nil
	})

	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), payload)
	require.Equal(t, 1, fetchCalls)
	require.Equal(t, []byte("fresh"), store.data["stop:1000:arrivals"])
	require.Equal(t, time.Minute, store.ttls["stop:1000:arrivals"])
}

func TestGetOrFetchFetchErrorIsReturned(t *testing.T) {
	store := newFakeStore()
	cache := NewReadThrough(store, time.Minute)

	wantErr := errors.New("upstream down")
	_, err := cache.GetOrFetch(context.Background(), "stop:1000:arrivals", func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})

	require.ErrorIs(t, err, wantErr)
	require.Empty(t, store.data)
}

func TestGetOrFetchServesPayloadDespiteWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("redis down")
	cache := NewReadThrough(store, time.Minute)

	payload, err := cache.GetOrFetch(context.Background(), "stop:1000:arrivals", func(ctx context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})

	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), payload)
}

func TestGetOrFetchReadFailureFallsThroughToFetch(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("redis down")
	cache := NewReadThrough(store, time.Minute)

	payload, err := cache.GetOrFetch(context.Background(), "stop:1000:arrivals", func(ctx context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})

	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), payload)
}
