package models

import "time"

// Organization is a tenant. Every other record belongs to exactly one organization.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// System config keys.
const (
	ConfigPassingScore       = "passing_score"
	ConfigDefaultDueDays     = "default_due_days"
	ConfigOTPTTLMinutes      = "otp_ttl_minutes"
	ConfigCriticalGapPercent = "critical_gap_percent"
)

// DefaultSystemConfig is written for every new organization.
var DefaultSystemConfig = map[string]int{
	ConfigPassingScore:       70,
	ConfigDefaultDueDays:     14,
	ConfigOTPTTLMinutes:      10,
	ConfigCriticalGapPercent: 50,
}

// SystemConfig holds an organization's tunables.
type SystemConfig map[string]int

// Int returns the value for key, falling back to the default.
func (c SystemConfig) Int(key string) int {
	if v, ok := c[key]; ok {
		return v
	}
	return DefaultSystemConfig[key]
}
