// Package providers resolves a catalog release into a direct playback URL
// through the user's streaming provider account.
package providers

import (
	"context"
	"fmt"
)

// ResolveRequest identifies the exact file to play.
type ResolveRequest struct {
	InfoHash   string
	MagnetLink string
	FileIndex  *int
	Season     int
	Episode    int
	Filename   string
}

// Resolver turns a release into a direct HTTP playback URL.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, token string, req ResolveRequest) (string, error)
}

// ForService returns the resolver registered under a service name.
func ForService(service string) (Resolver, error) {
	switch service {
	case "realdebrid":
		return NewRealDebrid(), nil
	default:
		return nil, fmt.Errorf("unsupported streaming provider %q", service)
	}
}
