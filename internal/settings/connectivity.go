package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"edgepurge/internal/store"
)

// Connectivity is the last confirmed result of a zone check. It is a cache
// only; losing it has no effect on purging.
type Connectivity struct {
	OK        bool      `json:"ok"`
	CheckedAt time.Time `json:"checked_at"`
	ZoneName  string    `json:"zone_name,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func SaveConnectivity(ctx context.Context, s store.Store, c Connectivity) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("settings: encode connectivity: %w", err)
	}
	if err := s.Set(ctx, store.KeyConnectivity, b); err != nil {
		return fmt.Errorf("settings: save connectivity: %w", err)
	}
	return nil
}

// LoadConnectivity reports ok=false when nothing usable is cached.
func LoadConnectivity(ctx context.Context, s store.Store) (Connectivity, bool, error) {
	b, err := s.Get(ctx, store.KeyConnectivity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Connectivity{}, false, nil
		}
		return Connectivity{}, false, fmt.Errorf("settings: load connectivity: %w", err)
	}
	var c Connectivity
	if err := json.Unmarshal(b, &c); err != nil {
		return Connectivity{}, false, nil
	}
	return c, true, nil
}
