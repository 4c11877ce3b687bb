package config

import (
	"sync"

	"github.com/spf13/viper"
)

// GuardrailSettings is the read-only bag of tunable fraud thresholds. A
// settings source pushes new values through SettingsStore.Update; the
// guardrail engine reads the latest snapshot synchronously.
type GuardrailSettings struct {
	CooldownMinutes      int     `mapstructure:"cooldown_minutes"`
	LimitsPerWeek        int     `mapstructure:"limits_per_week"`
	MaxDistanceKm        float64 `mapstructure:"max_distance_km"`
	MaxSpeedKmh          float64 `mapstructure:"max_speed_kmh"`
	EnforceBusinessHours bool    `mapstructure:"enforce_business_hours"`
	StrictBusinessHours  bool    `mapstructure:"strict_business_hours"`
	BusinessHoursStart   int     `mapstructure:"business_hours_start"`
	BusinessHoursEnd     int     `mapstructure:"business_hours_end"`
	MaxDevicesPerUser    int     `mapstructure:"max_devices_per_user"`
	BlockMultipleDevices bool    `mapstructure:"block_multiple_devices"`
}

// DefaultGuardrailSettings returns the built-in thresholds used until the
// first snapshot arrives.
func DefaultGuardrailSettings() GuardrailSettings {
	return GuardrailSettings{
		CooldownMinutes:      1,
		LimitsPerWeek:        20,
		MaxDistanceKm:        500,
		MaxSpeedKmh:          200,
		EnforceBusinessHours: false,
		StrictBusinessHours:  false,
		BusinessHoursStart:   9,
		BusinessHoursEnd:     18,
		MaxDevicesPerUser:    3,
		BlockMultipleDevices: true,
	}
}

func setGuardrailDefaults(v *viper.Viper) {
	d := DefaultGuardrailSettings()
	v.SetDefault("guardrails.cooldown_minutes", d.CooldownMinutes)
	v.SetDefault("guardrails.limits_per_week", d.LimitsPerWeek)
	v.SetDefault("guardrails.max_distance_km", d.MaxDistanceKm)
	v.SetDefault("guardrails.max_speed_kmh", d.MaxSpeedKmh)
	v.SetDefault("guardrails.enforce_business_hours", d.EnforceBusinessHours)
	v.SetDefault("guardrails.strict_business_hours", d.StrictBusinessHours)
	v.SetDefault("guardrails.business_hours_start", d.BusinessHoursStart)
	v.SetDefault("guardrails.business_hours_end", d.BusinessHoursEnd)
	v.SetDefault("guardrails.max_devices_per_user", d.MaxDevicesPerUser)
	v.SetDefault("guardrails.block_multiple_devices", d.BlockMultipleDevices)
}

// SettingsStore is an explicitly injected, thread-safe holder of the latest
// GuardrailSettings snapshot. It is owned by the process and passed by
// reference into the guardrail engine; there is no ambient global.
type SettingsStore struct {
	mu      sync.RWMutex
	current GuardrailSettings
	subs    []chan GuardrailSettings
}

// NewSettingsStore creates a store seeded with the given snapshot.
func NewSettingsStore(initial GuardrailSettings) *SettingsStore {
	return &SettingsStore{current: initial}
}

// Current returns the latest snapshot.
func (s *SettingsStore) Current() GuardrailSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update replaces the snapshot and notifies subscribers. Notification is
// non-blocking; a subscriber that has not drained its channel misses the
// intermediate value but will observe the latest on its next read.
func (s *SettingsStore) Update(next GuardrailSettings) {
	s.mu.Lock()
	s.current = next
	subs := make([]chan GuardrailSettings, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- next:
		default:
		}
	}
}

// Subscribe returns a channel receiving future snapshots.
func (s *SettingsStore) Subscribe() <-chan GuardrailSettings {
	ch := make(chan GuardrailSettings, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}
