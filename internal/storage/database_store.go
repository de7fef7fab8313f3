package storage

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zimbuild/sitebackend/internal/model"
)

// projectSortColumns maps API sort fields onto columns. Nullable columns sort their NULLs last.
var projectSortColumns = map[string]struct {
	column   string
	nullable bool
}{
	"createdAt":      {column: "created_at"},
	"updatedAt":      {column: "updated_at"},
	"title":          {column: "title"},
	"category":       {column: "category"},
	"status":         {column: "status"},
	"views":          {column: "views"},
	"startDate":      {column: "start_date", nullable: true},
	"completionDate": {column: "completion_date", nullable: true},
}

// lockForUpdate takes a row lock on postgres. SQLite connections are serialized in OpenDatabase.
func lockForUpdate(transaction *gorm.DB) *gorm.DB {
	if transaction.Dialector.Name() == DriverNamePostgres {
		return transaction.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return transaction
}

// DatabaseStore implements Store on top of gorm.
type DatabaseStore struct {
	database *gorm.DB
	ids      IDAllocator
}

// NewDatabaseStore wraps a migrated gorm connection.
func NewDatabaseStore(database *gorm.DB, ids IDAllocator) *DatabaseStore {
	if ids == nil {
		ids = UUIDAllocator{}
	}
	return &DatabaseStore{database: database, ids: ids}
}

// Database exposes the underlying connection.
func (store *DatabaseStore) Database() *gorm.DB {
	return store.database
}

func (store *DatabaseStore) Close() error {
	sqlDatabase, err := store.database.DB()
	if err != nil {
		return err
	}
	return sqlDatabase.Close()
}

func (store *DatabaseStore) CreateContact(ctx context.Context, contact *model.Contact) error {
	if contact.ID == "" {
		contact.ID = store.ids.NextID()
	}
	return translateError(store.database.WithContext(ctx).Create(contact).Error)
}

func (store *DatabaseStore) GetContact(ctx context.Context, id string) (model.Contact, error) {
	var contact model.Contact
	if err := store.database.WithContext(ctx).First(&contact, "id = ?", id).Error; err != nil {
		return model.Contact{}, translateError(err)
	}
	return contact, nil
}

func (store *DatabaseStore) ListContacts(ctx context.Context, filter ContactFilter, page Page) ([]model.Contact, int64, error) {
	query := store.database.WithContext(ctx).Model(&model.Contact{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	contacts := []model.Contact{}
	err := query.Order("created_at DESC").Order("id").Offset(page.Offset()).Limit(page.Limit).Find(&contacts).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return contacts, total, nil
}

func (store *DatabaseStore) UpdateContact(ctx context.Context, id string, mutate func(*model.Contact) error) (model.Contact, error) {
	var contact model.Contact
	err := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := lockForUpdate(transaction).First(&contact, "id = ?", id).Error; err != nil {
			return translateError(err)
		}
		if err := mutate(&contact); err != nil {
			return err
		}
		return translateError(transaction.Save(&contact).Error)
	})
	if err != nil {
		return model.Contact{}, err
	}
	return contact, nil
}

func (store *DatabaseStore) ContactStats(ctx context.Context) ([]ContactTypeStats, error) {
	stats := []ContactTypeStats{}
	err := store.database.WithContext(ctx).Model(&model.Contact{}).
		Select(
			"type AS type, COUNT(*) AS total, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS new, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS contacted, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS resolved",
			model.ContactStatusNew, model.ContactStatusContacted, model.ContactStatusResolved,
		).
		Group("type").
		Order("type").
		Scan(&stats).Error
	if err != nil {
		return nil, translateError(err)
	}
	return stats, nil
}

func (store *DatabaseStore) CreateSubscriber(ctx context.Context, subscriber *model.Subscriber) error {
	if subscriber.ID == "" {
		subscriber.ID = store.ids.NextID()
	}
	subscriber.EnforceActivity()
	return translateError(store.database.WithContext(ctx).Create(subscriber).Error)
}

func (store *DatabaseStore) GetSubscriberByEmail(ctx context.Context, email string) (model.Subscriber, error) {
	var subscriber model.Subscriber
	if err := store.database.WithContext(ctx).First(&subscriber, "email = ?", model.NormalizeEmail(email)).Error; err != nil {
		return model.Subscriber{}, translateError(err)
	}
	return subscriber, nil
}

func (store *DatabaseStore) UpdateSubscriber(ctx context.Context, email string, mutate func(*model.Subscriber) error) (model.Subscriber, error) {
	var subscriber model.Subscriber
	err := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := lockForUpdate(transaction).First(&subscriber, "email = ?", model.NormalizeEmail(email)).Error; err != nil {
			return translateError(err)
		}
		if err := mutate(&subscriber); err != nil {
			return err
		}
		subscriber.EnforceActivity()
		return translateError(transaction.Save(&subscriber).Error)
	})
	if err != nil {
		return model.Subscriber{}, err
	}
	return subscriber, nil
}

func (store *DatabaseStore) CreateProject(ctx context.Context, project *model.Project) error {
	if project.ID == "" {
		project.ID = store.ids.NextID()
	}
	return translateError(store.database.WithContext(ctx).Create(project).Error)
}

func (store *DatabaseStore) GetProject(ctx context.Context, id string) (model.Project, error) {
	var project model.Project
	if err := store.database.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return model.Project{}, translateError(err)
	}
	return project, nil
}

func (store *DatabaseStore) ListProjects(ctx context.Context, filter ProjectFilter, sort Sort, page Page) ([]model.Project, int64, error) {
	query := store.database.WithContext(ctx).Model(&model.Project{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Featured != nil {
		query = query.Where("featured = ?", *filter.Featured)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	sortColumn, known := projectSortColumns[sort.Field]
	if !known {
		sortColumn = projectSortColumns["createdAt"]
		sort.Descending = true
	}
	if sortColumn.nullable {
		query = query.Order(sortColumn.column + " IS NULL")
	}
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: sortColumn.column}, Desc: sort.Descending}).Order("id")

	projects := []model.Project{}
	if page.Limit > 0 {
		query = query.Offset(page.Offset()).Limit(page.Limit)
	}
	if err := query.Find(&projects).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return projects, total, nil
}

func (store *DatabaseStore) IncrementProjectViews(ctx context.Context, id string) (model.Project, error) {
	var project model.Project
	err := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		result := transaction.Model(&model.Project{}).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + ?", 1))
		if result.Error != nil {
			return translateError(result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return translateError(transaction.First(&project, "id = ?", id).Error)
	})
	if err != nil {
		return model.Project{}, err
	}
	return project, nil
}

func (store *DatabaseStore) UpdateProject(ctx context.Context, id string, mutate func(*model.Project) error) (model.Project, error) {
	var project model.Project
	err := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := lockForUpdate(transaction).First(&project, "id = ?", id).Error; err != nil {
			return translateError(err)
		}
		if err := mutate(&project); err != nil {
			return err
		}
		return translateError(transaction.Save(&project).Error)
	})
	if err != nil {
		return model.Project{}, err
	}
	return project, nil
}

func (store *DatabaseStore) DeleteProject(ctx context.Context, id string) (model.Project, error) {
	var project model.Project
	err := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := lockForUpdate(transaction).First(&project, "id = ?", id).Error; err != nil {
			return translateError(err)
		}
		return translateError(transaction.Delete(&model.Project{}, "id = ?", id).Error)
	})
	if err != nil {
		return model.Project{}, err
	}
	return project, nil
}

func (store *DatabaseStore) ProjectCategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	counts := []CategoryCount{}
	err := store.database.WithContext(ctx).Model(&model.Project{}).
		Select("category AS category, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS count", model.ProjectStatusCompleted).
		Group("category").
		Order("category").
		Scan(&counts).Error
	if err != nil {
		return nil, translateError(err)
	}
	return counts, nil
}

func (store *DatabaseStore) ProjectStats(ctx context.Context) (ProjectStats, error) {
	stats := ProjectStats{ByCategory: []ProjectCategoryStats{}}
	err := store.database.WithContext(ctx).Model(&model.Project{}).
		Select(
			"category AS category, COUNT(*) AS total, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS in_progress, "+
				"COALESCE(SUM(budget_amount), 0) AS total_budget, "+
				"COALESCE(SUM(size_value), 0) AS total_size",
			model.ProjectStatusCompleted, model.ProjectStatusInProgress,
		).
		Group("category").
		Order("category").
		Scan(&stats.ByCategory).Error
	if err != nil {
		return ProjectStats{}, translateError(err)
	}

	err = store.database.WithContext(ctx).Model(&model.Project{}).
		Select(
			"COUNT(*) AS total_projects, " +
				"COALESCE(SUM(views), 0) AS total_views, " +
				"COALESCE(SUM(CASE WHEN featured THEN 1 ELSE 0 END), 0) AS featured_projects, " +
				"COALESCE(AVG(budget_amount), 0) AS average_budget",
		).
		Scan(&stats.Overall).Error
	if err != nil {
		return ProjectStats{}, translateError(err)
	}
	return stats, nil
}

func (store *DatabaseStore) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = store.ids.NextID()
	}
	return translateError(store.database.WithContext(ctx).Create(user).Error)
}

func (store *DatabaseStore) GetUser(ctx context.Context, id string) (model.User, error) {
	var user model.User
	if err := store.database.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return model.User{}, translateError(err)
	}
	return user, nil
}

func (store *DatabaseStore) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	if err := store.database.WithContext(ctx).First(&user, "email = ?", model.NormalizeEmail(email)).Error; err != nil {
		return model.User{}, translateError(err)
	}
	return user, nil
}

func (store *DatabaseStore) RecordUserLogin(ctx context.Context, id string, at time.Time) error {
	result := store.database.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).UpdateColumn("last_login", at)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
