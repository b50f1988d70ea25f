package lnnode

import (
	"context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestIdentityCacheCancelledCallerDoesNotFailOthers(t *testing.T) {
	var cache IdentityCache
	started := make(chan struct{})
	release := make(chan struct{})
	fetchErr := make(chan error, 1)
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		fetchErr <- ctx.Err()
		return alice, nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := cache.Get(first, fetch)
		firstDone <- err
	}()
	<-started

	type result struct {
		pk  string
		err error
	}
	secondDone := make(chan result, 1)
	go func() {
		pk, err := cache.Get(context.Background(), fetch)
		secondDone <- result{pk, err}
	}()

	cancel()
	require.True(t, errors.Is(<-firstDone, context.Canceled))

	close(release)
	second := <-secondDone
	require.NoError(t, second.err)
	require.Equal(t, alice, second.pk)
	require.NoError(t, <-fetchErr)

	cached, ok := cache.Cached()
	require.True(t, ok)
	require.Equal(t, alice, cached)
}

func TestIdentityCacheFirstWriterWins(t *testing.T) {
	var cache IdentityCache
	pk, err := cache.Get(context.Background(), func(context.Context) (string, error) { return alice, nil })
	require.NoError(t, err)
	require.Equal(t, alice, pk)

	pk, err = cache.Get(context.Background(), func(context.Context) (string, error) { return bob, nil })
	require.NoError(t, err)
	require.Equal(t, alice, pk)
}
