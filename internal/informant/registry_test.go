package informant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/exchange"
)

func TestBuildFetcher_UnregisteredErrors(t *testing.T) {
	_, err := BuildFetcher("does-not-exist")
	require.Error(t, err)
}

func TestRegisterFetcherAndBuild(t *testing.T) {
	RegisterFetcher("fetcher-test", func() (Fetcher, error) {
		return registryStubFetcher{}, nil
	})
	f, err := BuildFetcher("fetcher-test")
	require.NoError(t, err)
	info, err := f.FetchExchangeInfo(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"eth-btc"}, info.Symbols)
}

type registryStubFetcher struct{}

func (registryStubFetcher) FetchExchangeInfo(context.Context, exchange.Exchange) (ExchangeInfo, error) {
	return ExchangeInfo{Symbols: []string{"eth-btc"}}, nil
}
