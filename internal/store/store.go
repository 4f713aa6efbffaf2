// Package store holds the key-value slots the service persists: settings,
// the invalidation queue and the cached connectivity status.
package store

import (
	"context"
	"errors"
	"fmt"
)

const (
	KeySettings     = "edgepurge:settings"
	KeyQueue        = "edgepurge:queue"
	KeyConnectivity = "edgepurge:connectivity"
)

// Keys lists every slot the service owns, for uninstall.
var Keys = []string{KeySettings, KeyQueue, KeyConnectivity}

// ErrNotFound is returned when a slot has never been written.
var ErrNotFound = errors.New("store: key not found")

// Store is a flat key-value slot store. Writes replace the whole value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver string

	Path string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

const (
	DriverLevelDB = "leveldb"
	DriverRedis   = "redis"
	DriverMemory  = "memory"
)

func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case DriverLevelDB, "":
		return OpenLevelDB(opts.Path)
	case DriverRedis:
		return NewRedis(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", opts.Driver)
	}
}
