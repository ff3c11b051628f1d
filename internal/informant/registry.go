package informant

import "fmt"

// FetcherFactory builds a Fetcher for one venue, typically a thin wrapper
// around that venue's own "exchange info" endpoint. Concrete adapters are
// out of scope for this module (see exchange.Factory's doc comment); this
// is the matching registration hook on the Informant side, so a deployment
// wires one Register call per adapter instead of Informant knowing about
// any venue by name.
type FetcherFactory func() (Fetcher, error)

var fetcherRegistry = make(map[string]FetcherFactory)

// RegisterFetcher adds a venue's Fetcher factory under name. Call from a
// concrete adapter package's init(), alongside exchange.Register for the
// same venue.
func RegisterFetcher(name string, factory FetcherFactory) {
	fetcherRegistry[name] = factory
}

// BuildFetcher constructs the Fetcher registered under name.
func BuildFetcher(name string) (Fetcher, error) {
	factory, ok := fetcherRegistry[name]
	if !ok {
		return nil, fmt.Errorf("informant: no fetcher registered for %q (blank-import a concrete adapter package)", name)
	}
	return factory()
}
