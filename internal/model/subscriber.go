package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	SubscriberSourceWebsite = "website"

	subscriberNameMaxLength   = 100
	subscriberSourceMaxLength = 32
)

var (
	ErrInvalidSubscriberEmail = errors.New("invalid_subscriber_email")
	ErrInvalidSubscriberName  = errors.New("invalid_subscriber_name")
)

// SubscriberPreferences are the named newsletter toggles.
type SubscriberPreferences struct {
	Newsletter     bool `json:"newsletter"`
	ProjectUpdates bool `json:"projectUpdates"`
	CompanyNews    bool `json:"companyNews"`
}

// Any reports whether at least one toggle is enabled.
func (preferences SubscriberPreferences) Any() bool {
	return preferences.Newsletter || preferences.ProjectUpdates || preferences.CompanyNews
}

// DefaultSubscriberPreferences enables every toggle.
func DefaultSubscriberPreferences() SubscriberPreferences {
	return SubscriberPreferences{Newsletter: true, ProjectUpdates: true, CompanyNews: true}
}

// Subscriber captures a newsletter subscription. Email is unique across all subscribers.
type Subscriber struct {
	ID          string                `gorm:"primaryKey;size:36" json:"id"`
	Email       string                `gorm:"not null;size:320;uniqueIndex:idx_subscribers_email" json:"email"`
	Name        string                `gorm:"size:100" json:"name,omitempty"`
	Source      string                `gorm:"size:32" json:"source"`
	IsActive    bool                  `gorm:"not null;index" json:"isActive"`
	Preferences SubscriberPreferences `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`
	IPAddress   string                `gorm:"size:64" json:"-"`
	UserAgent   string                `gorm:"size:400" json:"-"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// SubscriberInput holds the raw values used to construct a Subscriber.
type SubscriberInput struct {
	Email       string
	Name        string
	Source      string
	Preferences *SubscriberPreferences
	IPAddress   string
	UserAgent   string
}

// NewSubscriber constructs an active Subscriber with validated, normalized fields.
func NewSubscriber(input SubscriberInput) (Subscriber, error) {
	email := NormalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return Subscriber{}, fmt.Errorf("%w: %v", ErrInvalidSubscriberEmail, err)
	}

	name := strings.TrimSpace(input.Name)
	if len(name) > subscriberNameMaxLength {
		return Subscriber{}, fmt.Errorf("%w: name too long", ErrInvalidSubscriberName)
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = SubscriberSourceWebsite
	}

	preferences := DefaultSubscriberPreferences()
	if input.Preferences != nil {
		preferences = *input.Preferences
	}

	subscriber := Subscriber{
		Email:       email,
		Name:        name,
		Source:      truncateString(source, subscriberSourceMaxLength),
		IsActive:    true,
		Preferences: preferences,
		IPAddress:   truncateString(strings.TrimSpace(input.IPAddress), 64),
		UserAgent:   truncateString(strings.TrimSpace(input.UserAgent), 400),
	}
	subscriber.EnforceActivity()
	return subscriber, nil
}

// EnforceActivity deactivates the subscriber when every preference is disabled.
// Stores call it before every save.
func (subscriber *Subscriber) EnforceActivity() {
	if !subscriber.Preferences.Any() {
		subscriber.IsActive = false
	}
}
