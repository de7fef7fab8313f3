package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zimbuild/sitebackend/internal/model"
)

const (
	// ModeMemory keeps records in process memory. Development only.
	ModeMemory = "memory"
	// ModeDatabase persists records through gorm.
	ModeDatabase = "database"

	errorMessageUnsupportedStorageMode = "storage: unsupported storage mode"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrDuplicate indicates a unique key already exists.
	ErrDuplicate = errors.New("storage: duplicate record")
	// ErrUnsupportedStorageMode indicates the configured storage mode is unknown.
	ErrUnsupportedStorageMode = errors.New(errorMessageUnsupportedStorageMode)
)

// Page selects a window of an ordered result set. Number is 1-based.
type Page struct {
	Number int
	Limit  int
}

// Offset is the number of records skipped before the page.
func (page Page) Offset() int {
	if page.Number < 1 {
		return 0
	}
	return (page.Number - 1) * page.Limit
}

// Sort orders by a single field.
type Sort struct {
	Field      string
	Descending bool
}

// ParseSort reads "-field" as descending and "field" as ascending.
func ParseSort(raw string) Sort {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "-") {
		return Sort{Field: strings.TrimPrefix(trimmed, "-"), Descending: true}
	}
	return Sort{Field: trimmed}
}

// ContactFilter narrows contact listings. Empty fields do not filter.
type ContactFilter struct {
	Type   string
	Status string
}

// ProjectFilter narrows project listings. Empty or nil fields do not filter.
type ProjectFilter struct {
	Category string
	Status   string
	Featured *bool
}

// CategoryCount is a category with its number of completed projects.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// ContactTypeStats aggregates contacts of one type.
type ContactTypeStats struct {
	Type      string `json:"type"`
	Total     int64  `json:"total"`
	New       int64  `json:"new"`
	Contacted int64  `json:"contacted"`
	Resolved  int64  `json:"resolved"`
}

// ProjectCategoryStats aggregates projects of one category.
type ProjectCategoryStats struct {
	Category    string  `json:"category"`
	Total       int64   `json:"total"`
	Completed   int64   `json:"completed"`
	InProgress  int64   `json:"inProgress"`
	TotalBudget float64 `json:"totalBudget"`
	TotalSize   float64 `json:"totalSize"`
}

// ProjectOverallStats aggregates every project.
type ProjectOverallStats struct {
	TotalProjects    int64   `json:"totalProjects"`
	TotalViews       int64   `json:"totalViews"`
	FeaturedProjects int64   `json:"featuredProjects"`
	AverageBudget    float64 `json:"avgBudget"`
}

// ProjectStats groups per-category and overall project aggregates.
type ProjectStats struct {
	ByCategory []ProjectCategoryStats `json:"byCategory"`
	Overall    ProjectOverallStats    `json:"overall"`
}

// ContactStore persists contact records.
type ContactStore interface {
	CreateContact(ctx context.Context, contact *model.Contact) error
	GetContact(ctx context.Context, id string) (model.Contact, error)
	ListContacts(ctx context.Context, filter ContactFilter, page Page) ([]model.Contact, int64, error)
	// UpdateContact loads the contact, applies mutate and saves it as one step.
	UpdateContact(ctx context.Context, id string, mutate func(*model.Contact) error) (model.Contact, error)
	ContactStats(ctx context.Context) ([]ContactTypeStats, error)
}

// SubscriberStore persists newsletter subscribers.
type SubscriberStore interface {
	// CreateSubscriber fails with ErrDuplicate when the email already exists.
	CreateSubscriber(ctx context.Context, subscriber *model.Subscriber) error
	GetSubscriberByEmail(ctx context.Context, email string) (model.Subscriber, error)
	UpdateSubscriber(ctx context.Context, email string, mutate func(*model.Subscriber) error) (model.Subscriber, error)
}

// ProjectStore persists portfolio projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (model.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter, sort Sort, page Page) ([]model.Project, int64, error)
	// IncrementProjectViews bumps the view counter by one and returns the updated project.
	IncrementProjectViews(ctx context.Context, id string) (model.Project, error)
	UpdateProject(ctx context.Context, id string, mutate func(*model.Project) error) (model.Project, error)
	DeleteProject(ctx context.Context, id string) (model.Project, error)
	ProjectCategoryCounts(ctx context.Context) ([]CategoryCount, error)
	ProjectStats(ctx context.Context) (ProjectStats, error)
}

// UserStore persists staff accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	RecordUserLogin(ctx context.Context, id string, at time.Time) error
}

// Store is the persistence boundary used by the services.
type Store interface {
	ContactStore
	SubscriberStore
	ProjectStore
	UserStore
	Close() error
}

// IDAllocator hands out record identifiers.
type IDAllocator interface {
	NextID() string
}

// UUIDAllocator allocates random UUIDs.
type UUIDAllocator struct{}

func (UUIDAllocator) NextID() string {
	return NewID()
}

// SequenceAllocator allocates increasing decimal identifiers and is safe for concurrent use.
type SequenceAllocator struct {
	counter atomic.Uint64
}

func (allocator *SequenceAllocator) NextID() string {
	return strconv.FormatUint(allocator.counter.Add(1), 10)
}

// NewID generates a new globally unique identifier.
func NewID() string {
	return uuid.NewString()
}

// Settings selects and configures the store implementation.
type Settings struct {
	Mode     string
	Database Config
}

// NewStore builds the store named by settings.Mode.
func NewStore(settings Settings) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(settings.Mode)) {
	case ModeMemory:
		return NewMemoryStore(UUIDAllocator{}), nil
	case ModeDatabase, "":
		database, openErr := OpenDatabase(settings.Database)
		if openErr != nil {
			return nil, openErr
		}
		if migrateErr := AutoMigrate(database); migrateErr != nil {
			return nil, fmt.Errorf("storage: migrate: %w", migrateErr)
		}
		return NewDatabaseStore(database, UUIDAllocator{}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStorageMode, settings.Mode)
	}
}
