// Package settings holds the runtime-editable purge settings: zone id, API
// credential, batch size and the debug toggle. They are seeded from the
// config file and persisted in the settings slot once saved.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"edgepurge/internal/store"
)

// DefaultBatchSize is used when no batch size, or one below 1, is given.
const DefaultBatchSize = 30

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

type Settings struct {
	ZoneID    string `json:"zone_id" validate:"omitempty,alphanum,max=64"`
	APIToken  string `json:"api_token" validate:"omitempty,printascii,max=512"`
	BatchSize int    `json:"batch_size"`
	Debug     bool   `json:"debug"`
}

// Configured reports whether both credentials are present.
func (s Settings) Configured() bool {
	return s.ZoneID != "" && s.APIToken != ""
}

// Masked returns a copy safe to show in the admin view.
func (s Settings) Masked() Settings {
	s.APIToken = MaskToken(s.APIToken)
	return s
}

func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

// FieldError is one problem with a submitted field. Coerced problems were
// corrected in place and do not block saving.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Coerced bool   `json:"coerced"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "settings: " + strings.Join(parts, "; ")
}

// Fatal reports whether any problem could not be corrected.
func (e *ValidationError) Fatal() bool {
	for _, f := range e.Fields {
		if !f.Coerced {
			return true
		}
	}
	return false
}

// Sanitize trims and coerces s, then validates it. The returned error, if
// any, is a *ValidationError.
func Sanitize(s Settings) (Settings, error) {
	s.ZoneID = strings.TrimSpace(s.ZoneID)
	s.APIToken = strings.TrimSpace(s.APIToken)

	var fields []FieldError
	if s.BatchSize < 1 {
		fields = append(fields, FieldError{
			Field:   "batch_size",
			Message: fmt.Sprintf("must be at least 1, reset to %d", DefaultBatchSize),
			Coerced: true,
		})
		s.BatchSize = DefaultBatchSize
	}

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return s, err
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Message: "failed " + fe.Tag() + " check",
			})
		}
	}
	if len(fields) == 0 {
		return s, nil
	}
	return s, &ValidationError{Fields: fields}
}

// Manager owns the settings slot and the in-process copy of it.
type Manager struct {
	store    store.Store
	defaults Settings
	log      zerolog.Logger

	mu        sync.RWMutex
	cur       Settings
	listeners []func(Settings)
}

func NewManager(s store.Store, defaults Settings, log zerolog.Logger) *Manager {
	d, _ := Sanitize(defaults)
	return &Manager{store: s, defaults: d, log: log, cur: d}
}

// OnChange registers fn to run after every Load and successful Save.
func (m *Manager) OnChange(fn func(Settings)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Load reads the settings slot. A missing slot yields the defaults; an
// unreadable one is logged and also yields the defaults.
func (m *Manager) Load(ctx context.Context) (Settings, error) {
	s := m.defaults
	b, err := m.store.Get(ctx, store.KeySettings)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return m.Current(), fmt.Errorf("settings: load: %w", err)
	default:
		var stored Settings
		if err := json.Unmarshal(b, &stored); err != nil {
			m.log.Error().Err(err).Msg("[settings] stored settings are corrupt, using defaults")
		} else {
			// Invalid stored values are not fatal at load; keep what sanitizes.
			s, _ = Sanitize(stored)
		}
	}
	m.apply(s)
	return s, nil
}

// Save sanitizes and persists in. When only coerced problems were found the
// corrected settings are saved and a non-fatal *ValidationError is returned
// alongside them. Fatal problems persist nothing.
func (m *Manager) Save(ctx context.Context, in Settings) (Settings, error) {
	s, verr := Sanitize(in)
	var ve *ValidationError
	if verr != nil && (!errors.As(verr, &ve) || ve.Fatal()) {
		return m.Current(), verr
	}

	b, err := json.Marshal(s)
	if err != nil {
		return m.Current(), fmt.Errorf("settings: encode: %w", err)
	}
	if err := m.store.Set(ctx, store.KeySettings, b); err != nil {
		return m.Current(), fmt.Errorf("settings: save: %w", err)
	}
	m.apply(s)
	m.log.Info().
		Str("zone_id", s.ZoneID).
		Int("batch_size", s.BatchSize).
		Bool("debug", s.Debug).
		Msg("[settings] saved")
	if ve != nil {
		return s, ve
	}
	return s, nil
}

// Reset removes the settings slot and falls back to the defaults.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.store.Delete(ctx, store.KeySettings); err != nil {
		return fmt.Errorf("settings: reset: %w", err)
	}
	m.apply(m.defaults)
	return nil
}

func (m *Manager) apply(s Settings) {
	m.mu.Lock()
	m.cur = s
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
