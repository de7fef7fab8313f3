package model

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ContactTypeGeneral     = "general"
	ContactTypeCareer      = "career"
	ContactTypePartnership = "partnership"

	ContactStatusNew        = "new"
	ContactStatusContacted  = "contacted"
	ContactStatusInProgress = "in-progress"
	ContactStatusResolved   = "resolved"
	ContactStatusSpam       = "spam"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	ContactSourceWebsite = "website"

	// SystemActor identifies mutations performed without an authenticated identity.
	SystemActor = "system"

	contactEmailMaxLength = 320
)

var (
	ErrInvalidContactType   = errors.New("invalid_contact_type")
	ErrInvalidContactStatus = errors.New("invalid_contact_status")
	ErrInvalidContactEmail  = errors.New("invalid_contact_email")
	ErrEmptyNote            = errors.New("empty_note")
)

// ContactTypes lists the accepted contact record types.
var ContactTypes = []string{ContactTypeGeneral, ContactTypeCareer, ContactTypePartnership}

// ContactStatuses lists the accepted contact record statuses. Any status may follow any other.
var ContactStatuses = []string{ContactStatusNew, ContactStatusContacted, ContactStatusInProgress, ContactStatusResolved, ContactStatusSpam}

// ExperienceRanges lists the accepted years-of-experience buckets for career applications.
var ExperienceRanges = []string{"0-2", "3-5", "6-10", "10+"}

// Attachment references a blob held by the upload store.
type Attachment struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
}

// Note is an append-only annotation on a contact record.
type Note struct {
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contact unifies general inquiries, career applications and partnership requests.
type Contact struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Type        string      `gorm:"not null;size:16;index:idx_contacts_type_status" json:"type"`
	Name        string      `gorm:"not null;size:100" json:"name"`
	Email       string      `gorm:"not null;size:320;index" json:"email"`
	Phone       string      `gorm:"size:32" json:"phone,omitempty"`
	Company     string      `gorm:"size:100" json:"company,omitempty"`
	Position    string      `gorm:"size:100" json:"position,omitempty"`
	Experience  string      `gorm:"size:8" json:"experience,omitempty"`
	Subject     string      `gorm:"size:200" json:"subject,omitempty"`
	Message     string      `gorm:"size:2000" json:"message,omitempty"`
	CoverLetter string      `gorm:"size:5000" json:"coverLetter,omitempty"`
	Resume      *Attachment `gorm:"serializer:json" json:"resume,omitempty"`
	Status      string      `gorm:"not null;size:16;index:idx_contacts_type_status" json:"status"`
	Priority    string      `gorm:"not null;size:8" json:"priority"`
	Notes       []Note      `gorm:"serializer:json" json:"notes"`
	Source      string      `gorm:"size:32" json:"source"`
	IPAddress   string      `gorm:"size:64" json:"ipAddress,omitempty"`
	UserAgent   string      `gorm:"size:400" json:"userAgent,omitempty"`
	CreatedAt   time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// ContactInput holds the raw values used to construct a Contact.
type ContactInput struct {
	Type        string
	Name        string
	Email       string
	Phone       string
	Company     string
	Position    string
	Experience  string
	Subject     string
	Message     string
	CoverLetter string
	Resume      *Attachment
	IPAddress   string
	UserAgent   string
}

// NewContact constructs a Contact in status "new" with a priority derived from its type.
// The identifier and timestamps are assigned by the store.
func NewContact(input ContactInput) (Contact, error) {
	email := NormalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return Contact{}, fmt.Errorf("%w: %v", ErrInvalidContactEmail, err)
	}

	contact := Contact{
		Name:        strings.TrimSpace(input.Name),
		Email:       email,
		Phone:       strings.TrimSpace(input.Phone),
		Company:     strings.TrimSpace(input.Company),
		Position:    strings.TrimSpace(input.Position),
		Experience:  strings.TrimSpace(input.Experience),
		Subject:     strings.TrimSpace(input.Subject),
		Message:     strings.TrimSpace(input.Message),
		CoverLetter: strings.TrimSpace(input.CoverLetter),
		Resume:      input.Resume,
		Status:      ContactStatusNew,
		Notes:       []Note{},
		Source:      ContactSourceWebsite,
		IPAddress:   truncateString(strings.TrimSpace(input.IPAddress), 64),
		UserAgent:   truncateString(strings.TrimSpace(input.UserAgent), 400),
	}
	if err := contact.SetType(input.Type); err != nil {
		return Contact{}, err
	}
	return contact, nil
}

// SetType assigns the contact type and recomputes the priority.
func (contact *Contact) SetType(contactType string) error {
	normalized := strings.TrimSpace(contactType)
	if normalized == "" {
		normalized = ContactTypeGeneral
	}
	if !IsContactType(normalized) {
		return fmt.Errorf("%w: %s", ErrInvalidContactType, contactType)
	}
	contact.Type = normalized
	contact.Priority = PriorityForType(normalized)
	return nil
}

// AppendNote adds a note; notes are never edited or removed.
func (contact *Contact) AppendNote(content string, author string, at time.Time) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyNote
	}
	normalizedAuthor := strings.TrimSpace(author)
	if normalizedAuthor == "" {
		normalizedAuthor = SystemActor
	}
	contact.Notes = append(contact.Notes, Note{Content: trimmed, Author: normalizedAuthor, CreatedAt: at})
	return nil
}

// PriorityForType maps a contact type to its fixed priority.
func PriorityForType(contactType string) string {
	switch contactType {
	case ContactTypeCareer:
		return PriorityHigh
	case ContactTypePartnership:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// IsContactType reports whether value names a contact type.
func IsContactType(value string) bool {
	return containsString(ContactTypes, value)
}

// IsContactStatus reports whether value names a contact status.
func IsContactStatus(value string) bool {
	return containsString(ContactStatuses, value)
}

var nonDigitExpression = regexp.MustCompile(`\D`)

// FormattedPhone renders South African numbers as "+27 82 123 4567" and returns other numbers unchanged.
func FormattedPhone(phone string) string {
	if phone == "" {
		return ""
	}
	cleaned := nonDigitExpression.ReplaceAllString(phone, "")
	if strings.HasPrefix(cleaned, "27") && len(cleaned) > 7 {
		return fmt.Sprintf("+%s %s %s %s", cleaned[:2], cleaned[2:4], cleaned[4:7], cleaned[7:])
	}
	return phone
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" || len(email) > contactEmailMaxLength {
		return errors.New("empty or too long")
	}
	_, parseErr := mail.ParseAddress(email)
	return parseErr
}

func containsString(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}

func truncateString(value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	return string([]rune(value)[:max])
}
