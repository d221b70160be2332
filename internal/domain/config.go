package domain

import (
	"fmt"
	"strings"
	"time"
)

// Visibility is the privacy level a published video is created with.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityUnlisted:
		return true
	}
	return false
}

func (v *Visibility) UnmarshalText(text []byte) error {
	parsed := Visibility(text)
	if !parsed.Valid() {
		return fmt.Errorf("%w: privacyStatus must be one of private, public, unlisted", ErrInvalidConfig)
	}
	*v = parsed
	return nil
}

// ClockTime is a UTC time of day with minute precision, encoded as "HH:MM".
type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return ClockTime{}, fmt.Errorf("%w: %q must be HH:MM in 24-hour UTC time", ErrInvalidConfig, s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q must be HH:MM in 24-hour UTC time", ErrInvalidConfig, s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: invalid time of day %d:%d", ErrInvalidConfig, c.Hour, c.Minute)
	}
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AgentConfig is the single per-deployment publishing configuration.
type AgentConfig struct {
	DriveFolderID       string     `json:"driveFolderId"`
	DailyPublishTime    ClockTime  `json:"dailyPublishTimeUTC"`
	PrivacyStatus       Visibility `json:"privacyStatus"`
	NotifySubscribers   bool       `json:"notifySubscribers"`
	MetadataContext     string     `json:"metadataContext"`
	IncludeAutoChapters bool       `json:"includeAutoChapters"`
}

const DefaultMetadataContext = "You are posting daily videos sourced from Google Drive. Craft SEO-friendly metadata with clear CTAs."

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		DriveFolderID:    "",
		DailyPublishTime: ClockTime{Hour: 15, Minute: 0},
		PrivacyStatus:    VisibilityPrivate,
		MetadataContext:  DefaultMetadataContext,
	}
}

// Configured reports whether a source folder has been set.
func (c AgentConfig) Configured() bool {
	return strings.TrimSpace(c.DriveFolderID) != ""
}

func (c AgentConfig) Validate() error {
	if !c.DailyPublishTime.Valid() {
		return fmt.Errorf("%w: dailyPublishTimeUTC must be HH:MM in 24-hour UTC time", ErrInvalidConfig)
	}
	if !c.PrivacyStatus.Valid() {
		return fmt.Errorf("%w: privacyStatus must be one of private, public, unlisted", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.MetadataContext) == "" {
		return fmt.Errorf("%w: metadataContext is required", ErrInvalidConfig)
	}
	return nil
}
