// Package cdn is the client for the CDN purge API: exact file lists, path
// prefix lists, purge-everything and a zone connectivity check.
package cdn

import "context"

//go:generate mockgen -source=purger.go -destination=mocks/mock_purger.go -package=mocks

// Purger is what the drain and the inline purge need from the CDN.
type Purger interface {
	PurgeFiles(ctx context.Context, urls []string) error
	PurgePrefixes(ctx context.Context, prefixes []string) error
}
