package directory

import "context"

// StaticResolver resolves credentials from a fixed key-to-principal table.
// Useful for tests and for running the service without a directory.
type StaticResolver struct {
	keys map[string]Principal
}

// NewStaticResolver builds a resolver over the provided credential table.
func NewStaticResolver(keys map[string]Principal) *StaticResolver {
	if keys == nil {
		keys = make(map[string]Principal)
	}
	return &StaticResolver{keys: keys}
}

// Resolve looks the credential up in the table.
func (r *StaticResolver) Resolve(_ context.Context, apiKey string) (Principal, error) {
	p, ok := r.keys[apiKey]
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}
