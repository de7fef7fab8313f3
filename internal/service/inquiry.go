package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/storage"
)

const (
	// DefaultInquiryLimit is the page size of inquiry listings.
	DefaultInquiryLimit = 10

	logEventInquiryNotificationFailed     = "inquiry_notification_failed"
	logEventApplicationNotificationFailed = "application_notification_failed"
)

var (
	// ErrAlreadySubscribed rejects a newsletter signup for an email that already has a subscription.
	ErrAlreadySubscribed = errors.New("service: email already subscribed")
)

// InquiryNotifier confirms submissions to the people who sent them.
type InquiryNotifier interface {
	NotifyInquiry(ctx context.Context, contact model.Contact) error
	NotifyApplication(ctx context.Context, contact model.Contact) error
}

type noopInquiryNotifier struct{}

func (noopInquiryNotifier) NotifyInquiry(context.Context, model.Contact) error { return nil }

func (noopInquiryNotifier) NotifyApplication(context.Context, model.Contact) error { return nil }

func resolveInquiryNotifier(notifier InquiryNotifier) InquiryNotifier {
	if notifier == nil {
		return noopInquiryNotifier{}
	}
	return notifier
}

// InquiryInput carries a validated general or partnership inquiry.
type InquiryInput struct {
	Type      string
	Name      string
	Email     string
	Phone     string
	Company   string
	Subject   string
	Message   string
	IPAddress string
	UserAgent string
}

// CareerInput carries a validated career application.
type CareerInput struct {
	Name        string
	Email       string
	Phone       string
	Position    string
	Experience  string
	CoverLetter string
	IPAddress   string
	UserAgent   string
}

// SubscribeInput carries a validated newsletter signup.
type SubscribeInput struct {
	Email       string
	Name        string
	Source      string
	Preferences *model.SubscriberPreferences
	IPAddress   string
	UserAgent   string
}

// InquiryPage is one page of contact records.
type InquiryPage struct {
	Inquiries  []model.Contact `json:"inquiries"`
	Pagination Pagination      `json:"pagination"`
}

// InquiryStoreSet is the persistence the inquiry service needs.
type InquiryStoreSet interface {
	storage.ContactStore
	storage.SubscriberStore
}

// InquiryConfig wires an InquiryService.
type InquiryConfig struct {
	Store    InquiryStoreSet
	Notifier InquiryNotifier
	Logger   *zap.Logger
	Clock    func() time.Time
}

// InquiryService manages contact records and newsletter subscribers.
type InquiryService struct {
	store    InquiryStoreSet
	notifier InquiryNotifier
	logger   *zap.Logger
	clock    func() time.Time
}

func NewInquiryService(configuration InquiryConfig) *InquiryService {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InquiryService{
		store:    configuration.Store,
		notifier: resolveInquiryNotifier(configuration.Notifier),
		logger:   logger,
		clock:    clockOrNow(configuration.Clock),
	}
}

// SubmitInquiry records a general or partnership inquiry and confirms it by email.
// A failed confirmation is logged and does not fail the submission.
func (service *InquiryService) SubmitInquiry(ctx context.Context, input InquiryInput) (model.Contact, error) {
	contactType := input.Type
	if contactType == model.ContactTypeCareer {
		contactType = model.ContactTypeGeneral
	}
	contact, err := model.NewContact(model.ContactInput{
		Type:      contactType,
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Company:   input.Company,
		Subject:   input.Subject,
		Message:   input.Message,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
	if err != nil {
		return model.Contact{}, err
	}
	if err := service.store.CreateContact(ctx, &contact); err != nil {
		return model.Contact{}, fmt.Errorf("service: create inquiry: %w", err)
	}

	if notifyErr := service.notifier.NotifyInquiry(ctx, contact); notifyErr != nil {
		service.logger.Warn(logEventInquiryNotificationFailed, zap.Error(notifyErr), zap.String("contact_id", contact.ID))
	}
	return contact, nil
}

// SubmitCareerApplication records a career application with an optional résumé reference.
func (service *InquiryService) SubmitCareerApplication(ctx context.Context, input CareerInput, resume *model.Attachment) (model.Contact, error) {
	contact, err := model.NewContact(model.ContactInput{
		Type:        model.ContactTypeCareer,
		Name:        input.Name,
		Email:       input.Email,
		Phone:       input.Phone,
		Position:    input.Position,
		Experience:  input.Experience,
		CoverLetter: input.CoverLetter,
		Resume:      resume,
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
	})
	if err != nil {
		return model.Contact{}, err
	}
	if err := service.store.CreateContact(ctx, &contact); err != nil {
		return model.Contact{}, fmt.Errorf("service: create application: %w", err)
	}

	if notifyErr := service.notifier.NotifyApplication(ctx, contact); notifyErr != nil {
		service.logger.Warn(logEventApplicationNotificationFailed, zap.Error(notifyErr), zap.String("contact_id", contact.ID))
	}
	return contact, nil
}

// SubscribeToNewsletter creates a subscriber. An existing email, active or not, yields ErrAlreadySubscribed.
func (service *InquiryService) SubscribeToNewsletter(ctx context.Context, input SubscribeInput) (model.Subscriber, error) {
	subscriber, err := model.NewSubscriber(model.SubscriberInput{
		Email:       input.Email,
		Name:        input.Name,
		Source:      input.Source,
		Preferences: input.Preferences,
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
	})
	if err != nil {
		return model.Subscriber{}, err
	}
	if err := service.store.CreateSubscriber(ctx, &subscriber); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return model.Subscriber{}, ErrAlreadySubscribed
		}
		return model.Subscriber{}, fmt.Errorf("service: create subscriber: %w", err)
	}
	return subscriber, nil
}

// Unsubscribe deactivates the subscriber with the given email.
func (service *InquiryService) Unsubscribe(ctx context.Context, email string) (model.Subscriber, error) {
	return service.store.UpdateSubscriber(ctx, model.NormalizeEmail(email), func(subscriber *model.Subscriber) error {
		subscriber.IsActive = false
		return nil
	})
}

// ListInquiries returns contacts newest first, filtered on the provided fields only.
func (service *InquiryService) ListInquiries(ctx context.Context, filter storage.ContactFilter, page storage.Page) (InquiryPage, error) {
	if filter.Type != "" && !model.IsContactType(filter.Type) {
		return InquiryPage{}, fmt.Errorf("%w: %s", model.ErrInvalidContactType, filter.Type)
	}
	if filter.Status != "" && !model.IsContactStatus(filter.Status) {
		return InquiryPage{}, fmt.Errorf("%w: %s", model.ErrInvalidContactStatus, filter.Status)
	}
	contacts, total, err := service.store.ListContacts(ctx, filter, page)
	if err != nil {
		return InquiryPage{}, err
	}
	return InquiryPage{Inquiries: contacts, Pagination: NewPagination(page, total)}, nil
}

func (service *InquiryService) GetInquiry(ctx context.Context, id string) (model.Contact, error) {
	return service.store.GetContact(ctx, id)
}

// UpdateInquiryStatus sets the status. A non-empty note is appended in the same write.
func (service *InquiryService) UpdateInquiryStatus(ctx context.Context, id string, status string, note string, actor string) (model.Contact, error) {
	if !model.IsContactStatus(status) {
		return model.Contact{}, fmt.Errorf("%w: %s", model.ErrInvalidContactStatus, status)
	}
	return service.store.UpdateContact(ctx, id, func(contact *model.Contact) error {
		contact.Status = status
		if note == "" {
			return nil
		}
		return contact.AppendNote(note, actor, service.clock().UTC())
	})
}

// AddInquiryNote appends a note authored by actor.
func (service *InquiryService) AddInquiryNote(ctx context.Context, id string, content string, actor string) (model.Contact, error) {
	return service.store.UpdateContact(ctx, id, func(contact *model.Contact) error {
		return contact.AppendNote(content, actor, service.clock().UTC())
	})
}

// InquiryStats aggregates contacts per type.
func (service *InquiryService) InquiryStats(ctx context.Context) ([]storage.ContactTypeStats, error) {
	return service.store.ContactStats(ctx)
}
