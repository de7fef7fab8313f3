package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zimbuild/sitebackend/internal/model"
)

// MemoryStore keeps every record in process memory. All access is serialized by one RWMutex,
// so it is safe for concurrent handlers; records are copied in and out so callers never share state.
type MemoryStore struct {
	mutex       sync.RWMutex
	ids         IDAllocator
	sequence    uint64
	contacts    map[string]memoryRecord[model.Contact]
	subscribers map[string]memoryRecord[model.Subscriber]
	projects    map[string]memoryRecord[model.Project]
	users       map[string]memoryRecord[model.User]
}

type memoryRecord[T any] struct {
	sequence uint64
	value    T
}

// NewMemoryStore creates an empty MemoryStore that allocates identifiers with ids.
func NewMemoryStore(ids IDAllocator) *MemoryStore {
	if ids == nil {
		ids = &SequenceAllocator{}
	}
	return &MemoryStore{
		ids:         ids,
		contacts:    make(map[string]memoryRecord[model.Contact]),
		subscribers: make(map[string]memoryRecord[model.Subscriber]),
		projects:    make(map[string]memoryRecord[model.Project]),
		users:       make(map[string]memoryRecord[model.User]),
	}
}

func (store *MemoryStore) Close() error {
	return nil
}

func stampCreated(createdAt *time.Time, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
}

func (store *MemoryStore) nextSequence() uint64 {
	store.sequence++
	return store.sequence
}

func (store *MemoryStore) CreateContact(_ context.Context, contact *model.Contact) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if contact.ID == "" {
		contact.ID = store.ids.NextID()
	}
	if _, exists := store.contacts[contact.ID]; exists {
		return ErrDuplicate
	}
	stampCreated(&contact.CreatedAt, &contact.UpdatedAt)
	store.contacts[contact.ID] = memoryRecord[model.Contact]{sequence: store.nextSequence(), value: cloneContact(*contact)}
	return nil
}

func (store *MemoryStore) GetContact(_ context.Context, id string) (model.Contact, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	record, exists := store.contacts[id]
	if !exists {
		return model.Contact{}, ErrNotFound
	}
	return cloneContact(record.value), nil
}

func (store *MemoryStore) ListContacts(_ context.Context, filter ContactFilter, page Page) ([]model.Contact, int64, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	matched := make([]memoryRecord[model.Contact], 0, len(store.contacts))
	for _, record := range store.contacts {
		if filter.Type != "" && record.value.Type != filter.Type {
			continue
		}
		if filter.Status != "" && record.value.Status != filter.Status {
			continue
		}
		matched = append(matched, record)
	}
	sort.Slice(matched, func(left, right int) bool {
		leftCreated, rightCreated := matched[left].value.CreatedAt, matched[right].value.CreatedAt
		if !leftCreated.Equal(rightCreated) {
			return leftCreated.After(rightCreated)
		}
		return matched[left].sequence > matched[right].sequence
	})

	window := pageWindow(len(matched), page)
	contacts := make([]model.Contact, 0, window.end-window.start)
	for _, record := range matched[window.start:window.end] {
		contacts = append(contacts, cloneContact(record.value))
	}
	return contacts, int64(len(matched)), nil
}

func (store *MemoryStore) UpdateContact(_ context.Context, id string, mutate func(*model.Contact) error) (model.Contact, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, exists := store.contacts[id]
	if !exists {
		return model.Contact{}, ErrNotFound
	}
	updated := cloneContact(record.value)
	if err := mutate(&updated); err != nil {
		return model.Contact{}, err
	}
	updated.ID = id
	updated.UpdatedAt = time.Now().UTC()
	record.value = cloneContact(updated)
	store.contacts[id] = record
	return updated, nil
}

func (store *MemoryStore) ContactStats(_ context.Context) ([]ContactTypeStats, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	byType := make(map[string]*ContactTypeStats)
	for _, record := range store.contacts {
		entry, exists := byType[record.value.Type]
		if !exists {
			entry = &ContactTypeStats{Type: record.value.Type}
			byType[record.value.Type] = entry
		}
		entry.Total++
		switch record.value.Status {
		case model.ContactStatusNew:
			entry.New++
		case model.ContactStatusContacted:
			entry.Contacted++
		case model.ContactStatusResolved:
			entry.Resolved++
		}
	}

	stats := make([]ContactTypeStats, 0, len(byType))
	for _, entry := range byType {
		stats = append(stats, *entry)
	}
	sort.Slice(stats, func(left, right int) bool { return stats[left].Type < stats[right].Type })
	return stats, nil
}

func (store *MemoryStore) CreateSubscriber(_ context.Context, subscriber *model.Subscriber) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	email := model.NormalizeEmail(subscriber.Email)
	if _, exists := store.subscribers[email]; exists {
		return ErrDuplicate
	}
	if subscriber.ID == "" {
		subscriber.ID = store.ids.NextID()
	}
	subscriber.Email = email
	subscriber.EnforceActivity()
	stampCreated(&subscriber.CreatedAt, &subscriber.UpdatedAt)
	store.subscribers[email] = memoryRecord[model.Subscriber]{sequence: store.nextSequence(), value: *subscriber}
	return nil
}

func (store *MemoryStore) GetSubscriberByEmail(_ context.Context, email string) (model.Subscriber, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	record, exists := store.subscribers[model.NormalizeEmail(email)]
	if !exists {
		return model.Subscriber{}, ErrNotFound
	}
	return record.value, nil
}

func (store *MemoryStore) UpdateSubscriber(_ context.Context, email string, mutate func(*model.Subscriber) error) (model.Subscriber, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	key := model.NormalizeEmail(email)
	record, exists := store.subscribers[key]
	if !exists {
		return model.Subscriber{}, ErrNotFound
	}
	updated := record.value
	if err := mutate(&updated); err != nil {
		return model.Subscriber{}, err
	}
	updated.Email = key
	updated.UpdatedAt = time.Now().UTC()
	updated.EnforceActivity()
	record.value = updated
	store.subscribers[key] = record
	return updated, nil
}

func (store *MemoryStore) CreateProject(_ context.Context, project *model.Project) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if project.ID == "" {
		project.ID = store.ids.NextID()
	}
	if _, exists := store.projects[project.ID]; exists {
		return ErrDuplicate
	}
	stampCreated(&project.CreatedAt, &project.UpdatedAt)
	store.projects[project.ID] = memoryRecord[model.Project]{sequence: store.nextSequence(), value: cloneProject(*project)}
	return nil
}

func (store *MemoryStore) GetProject(_ context.Context, id string) (model.Project, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	record, exists := store.projects[id]
	if !exists {
		return model.Project{}, ErrNotFound
	}
	return cloneProject(record.value), nil
}

func (store *MemoryStore) ListProjects(_ context.Context, filter ProjectFilter, order Sort, page Page) ([]model.Project, int64, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	matched := make([]memoryRecord[model.Project], 0, len(store.projects))
	for _, record := range store.projects {
		if filter.Category != "" && record.value.Category != filter.Category {
			continue
		}
		if filter.Status != "" && record.value.Status != filter.Status {
			continue
		}
		if filter.Featured != nil && record.value.Featured != *filter.Featured {
			continue
		}
		matched = append(matched, record)
	}

	if _, known := projectSortColumns[order.Field]; !known {
		order = Sort{Field: "createdAt", Descending: true}
	}
	sort.SliceStable(matched, func(left, right int) bool {
		comparison := compareProjects(matched[left].value, matched[right].value, order.Field)
		if comparison.nullOrdering != 0 {
			return comparison.nullOrdering < 0
		}
		if comparison.value != 0 {
			if order.Descending {
				return comparison.value > 0
			}
			return comparison.value < 0
		}
		return matched[left].sequence < matched[right].sequence
	})

	window := pageWindow(len(matched), page)
	projects := make([]model.Project, 0, window.end-window.start)
	for _, record := range matched[window.start:window.end] {
		projects = append(projects, cloneProject(record.value))
	}
	return projects, int64(len(matched)), nil
}

func (store *MemoryStore) IncrementProjectViews(_ context.Context, id string) (model.Project, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, exists := store.projects[id]
	if !exists {
		return model.Project{}, ErrNotFound
	}
	record.value.Views++
	store.projects[id] = record
	return cloneProject(record.value), nil
}

func (store *MemoryStore) UpdateProject(_ context.Context, id string, mutate func(*model.Project) error) (model.Project, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, exists := store.projects[id]
	if !exists {
		return model.Project{}, ErrNotFound
	}
	updated := cloneProject(record.value)
	if err := mutate(&updated); err != nil {
		return model.Project{}, err
	}
	updated.ID = id
	updated.UpdatedAt = time.Now().UTC()
	record.value = cloneProject(updated)
	store.projects[id] = record
	return updated, nil
}

func (store *MemoryStore) DeleteProject(_ context.Context, id string) (model.Project, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, exists := store.projects[id]
	if !exists {
		return model.Project{}, ErrNotFound
	}
	delete(store.projects, id)
	return record.value, nil
}

func (store *MemoryStore) ProjectCategoryCounts(_ context.Context) ([]CategoryCount, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	counts := make(map[string]int64)
	for _, record := range store.projects {
		if _, exists := counts[record.value.Category]; !exists {
			counts[record.value.Category] = 0
		}
		if record.value.Status == model.ProjectStatusCompleted {
			counts[record.value.Category]++
		}
	}

	result := make([]CategoryCount, 0, len(counts))
	for category, count := range counts {
		result = append(result, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(result, func(left, right int) bool { return result[left].Category < result[right].Category })
	return result, nil
}

func (store *MemoryStore) ProjectStats(_ context.Context) (ProjectStats, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	byCategory := make(map[string]*ProjectCategoryStats)
	stats := ProjectStats{ByCategory: []ProjectCategoryStats{}}
	var budgetTotal float64
	for _, record := range store.projects {
		project := record.value
		entry, exists := byCategory[project.Category]
		if !exists {
			entry = &ProjectCategoryStats{Category: project.Category}
			byCategory[project.Category] = entry
		}
		entry.Total++
		switch project.Status {
		case model.ProjectStatusCompleted:
			entry.Completed++
		case model.ProjectStatusInProgress:
			entry.InProgress++
		}
		entry.TotalBudget += project.Budget.Amount
		entry.TotalSize += project.Size.Value

		stats.Overall.TotalProjects++
		stats.Overall.TotalViews += project.Views
		if project.Featured {
			stats.Overall.FeaturedProjects++
		}
		budgetTotal += project.Budget.Amount
	}
	if stats.Overall.TotalProjects > 0 {
		stats.Overall.AverageBudget = budgetTotal / float64(stats.Overall.TotalProjects)
	}
	for _, entry := range byCategory {
		stats.ByCategory = append(stats.ByCategory, *entry)
	}
	sort.Slice(stats.ByCategory, func(left, right int) bool {
		return stats.ByCategory[left].Category < stats.ByCategory[right].Category
	})
	return stats, nil
}

func (store *MemoryStore) CreateUser(_ context.Context, user *model.User) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	email := model.NormalizeEmail(user.Email)
	for _, record := range store.users {
		if record.value.Email == email {
			return ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = store.ids.NextID()
	}
	user.Email = email
	stampCreated(&user.CreatedAt, &user.UpdatedAt)
	store.users[user.ID] = memoryRecord[model.User]{sequence: store.nextSequence(), value: cloneUser(*user)}
	return nil
}

func (store *MemoryStore) GetUser(_ context.Context, id string) (model.User, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	record, exists := store.users[id]
	if !exists {
		return model.User{}, ErrNotFound
	}
	return cloneUser(record.value), nil
}

func (store *MemoryStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	normalized := model.NormalizeEmail(email)
	for _, record := range store.users {
		if record.value.Email == normalized {
			return cloneUser(record.value), nil
		}
	}
	return model.User{}, ErrNotFound
}

func (store *MemoryStore) RecordUserLogin(_ context.Context, id string, at time.Time) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, exists := store.users[id]
	if !exists {
		return ErrNotFound
	}
	loginTime := at
	record.value.LastLogin = &loginTime
	store.users[id] = record
	return nil
}

type window struct {
	start int
	end   int
}

func pageWindow(total int, page Page) window {
	if page.Limit <= 0 {
		return window{start: 0, end: total}
	}
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return window{start: start, end: end}
}

type projectComparison struct {
	// nullOrdering is negative when only the right value is missing and positive when only the left is.
	nullOrdering int
	value        int
}

func compareProjects(left model.Project, right model.Project, field string) projectComparison {
	switch field {
	case "updatedAt":
		return projectComparison{value: left.UpdatedAt.Compare(right.UpdatedAt)}
	case "title":
		return projectComparison{value: strings.Compare(left.Title, right.Title)}
	case "category":
		return projectComparison{value: strings.Compare(left.Category, right.Category)}
	case "status":
		return projectComparison{value: strings.Compare(left.Status, right.Status)}
	case "views":
		return projectComparison{value: compareInt64(left.Views, right.Views)}
	case "startDate":
		return compareOptionalTimes(left.StartDate, right.StartDate)
	case "completionDate":
		return compareOptionalTimes(left.CompletionDate, right.CompletionDate)
	default:
		return projectComparison{value: left.CreatedAt.Compare(right.CreatedAt)}
	}
}

func compareOptionalTimes(left *time.Time, right *time.Time) projectComparison {
	switch {
	case left == nil && right == nil:
		return projectComparison{}
	case left == nil:
		return projectComparison{nullOrdering: 1}
	case right == nil:
		return projectComparison{nullOrdering: -1}
	default:
		return projectComparison{value: left.Compare(*right)}
	}
}

func compareInt64(left int64, right int64) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func cloneContact(contact model.Contact) model.Contact {
	if contact.Resume != nil {
		resume := *contact.Resume
		contact.Resume = &resume
	}
	contact.Notes = append([]model.Note{}, contact.Notes...)
	return contact
}

func cloneProject(project model.Project) model.Project {
	project.Images = append([]model.ProjectImage{}, project.Images...)
	project.Tags = append(project.Tags[:0:0], project.Tags...)
	if project.StartDate != nil {
		startDate := *project.StartDate
		project.StartDate = &startDate
	}
	if project.CompletionDate != nil {
		completionDate := *project.CompletionDate
		project.CompletionDate = &completionDate
	}
	return project
}

func cloneUser(user model.User) model.User {
	if user.LastLogin != nil {
		lastLogin := *user.LastLogin
		user.LastLogin = &lastLogin
	}
	return user
}
