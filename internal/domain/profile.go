package domain

import "time"

// Profile represents a user's identity record. The user identifier is owned
// by the authentication subsystem; everything else is owned by the sync layer
// once loaded.
type Profile struct {
	ID          string                 `json:"id"`
	DisplayName string                 `json:"display_name"`
	AvatarURL   string                 `json:"avatar_url,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`

	// Denormalized gamification columns kept on the profile row. These back
	// the profile-subset stats fallback when the dedicated stats sources are
	// unreachable.
	TotalXP      int64 `json:"total_xp"`
	CurrentLevel int   `json:"current_level"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can hand profiles out of a guarded
// section without sharing the attributes map.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Attributes != nil {
		cp.Attributes = make(map[string]interface{}, len(p.Attributes))
		for k, v := range p.Attributes {
			cp.Attributes[k] = v
		}
	}
	return &cp
}

// ProfileUpdate is a partial profile mutation. Nil fields are left unchanged.
type ProfileUpdate struct {
	DisplayName *string                `json:"display_name,omitempty"`
	AvatarURL   *string                `json:"avatar_url,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u ProfileUpdate) Empty() bool {
	return u.DisplayName == nil && u.AvatarURL == nil && len(u.Attributes) == 0
}

// ApplyTo merges the update into a copy of the given profile.
func (u ProfileUpdate) ApplyTo(p *Profile) *Profile {
	out := p.Clone()
	if u.DisplayName != nil {
		out.DisplayName = *u.DisplayName
	}
	if u.AvatarURL != nil {
		out.AvatarURL = *u.AvatarURL
	}
	if len(u.Attributes) > 0 {
		if out.Attributes == nil {
			out.Attributes = make(map[string]interface{}, len(u.Attributes))
		}
		for k, v := range u.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// CacheEntry wraps a profile snapshot with its write timestamp. Exactly one
// entry exists per user identifier; rewriting overwrites in place.
type CacheEntry struct {
	Profile   *Profile  `json:"profile"`
	WrittenAt time.Time `json:"written_at"`
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt)
}

// Cache freshness windows. An entry younger than StaleAfter renders without
// any network traffic; between StaleAfter and ExpireAfter it renders
// immediately and triggers a background revalidation; past ExpireAfter it is
// discarded outright.
const (
	DefaultStaleAfter  = 5 * time.Minute
	DefaultExpireAfter = 60 * time.Minute
)
