package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/storage"
)

const (
	// DefaultProjectLimit is the page size of project listings.
	DefaultProjectLimit = 9
	// DefaultFeaturedLimit caps the featured project listing.
	DefaultFeaturedLimit = 6
	// DefaultProjectSort lists the newest projects first.
	DefaultProjectSort = "-createdAt"
)

// ProjectSortFields are the fields project listings may be sorted by.
var ProjectSortFields = []string{"createdAt", "updatedAt", "title", "completionDate", "startDate", "views", "category", "status"}

var (
	// ErrImageNotFound means the project exists but holds no image with the requested id.
	ErrImageNotFound = errors.New("service: image not found")
	// ErrMissingProjectField rejects a create without one of the required fields.
	ErrMissingProjectField = errors.New("service: missing project field")
)

// AttachmentRemover deletes blobs behind persisted attachments. Failures are handled by the remover.
type AttachmentRemover interface {
	DeleteAttachments(ctx context.Context, attachments []model.Attachment)
}

type noopAttachmentRemover struct{}

func (noopAttachmentRemover) DeleteAttachments(context.Context, []model.Attachment) {}

func resolveAttachmentRemover(remover AttachmentRemover) AttachmentRemover {
	if remover == nil {
		return noopAttachmentRemover{}
	}
	return remover
}

// ProjectInput carries validated project fields. Nil fields are left unchanged on update.
type ProjectInput struct {
	Title            *string
	Description      *string
	ShortDescription *string
	Category         *string
	Location         *string
	Status           *string
	Featured         *bool
	StartDate        *time.Time
	CompletionDate   *time.Time
	Budget           *model.Budget
	Size             *model.ProjectSize
	ClientName       *string
	ClientWebsite    *string
	ClientLogo       *string
	Tags             []string
}

// ProjectPage is one page of projects.
type ProjectPage struct {
	Projects   []model.Project `json:"projects"`
	Pagination Pagination      `json:"pagination"`
}

// ImageBatch reports images appended to a project.
type ImageBatch struct {
	Images      []model.ProjectImage `json:"images"`
	TotalImages int                  `json:"totalImages"`
}

// ProjectConfig wires a ProjectService.
type ProjectConfig struct {
	Store  storage.ProjectStore
	Blobs  AttachmentRemover
	IDs    storage.IDAllocator
	Logger *zap.Logger
	Clock  func() time.Time
}

// ProjectService manages the project portfolio.
type ProjectService struct {
	store  storage.ProjectStore
	blobs  AttachmentRemover
	ids    storage.IDAllocator
	logger *zap.Logger
	clock  func() time.Time
}

func NewProjectService(configuration ProjectConfig) *ProjectService {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := configuration.IDs
	if ids == nil {
		ids = storage.UUIDAllocator{}
	}
	return &ProjectService{
		store:  configuration.Store,
		blobs:  resolveAttachmentRemover(configuration.Blobs),
		ids:    ids,
		logger: logger,
		clock:  clockOrNow(configuration.Clock),
	}
}

// ListProjects returns one page of projects matching every provided filter field.
func (service *ProjectService) ListProjects(ctx context.Context, filter storage.ProjectFilter, sort storage.Sort, page storage.Page) (ProjectPage, error) {
	if filter.Category != "" && !model.IsProjectCategory(filter.Category) {
		return ProjectPage{}, fmt.Errorf("%w: %s", model.ErrInvalidProjectCategory, filter.Category)
	}
	if filter.Status != "" && !model.IsProjectStatus(filter.Status) {
		return ProjectPage{}, fmt.Errorf("%w: %s", model.ErrInvalidProjectStatus, filter.Status)
	}
	if sort.Field == "" {
		sort = storage.ParseSort(DefaultProjectSort)
	}
	projects, total, err := service.store.ListProjects(ctx, filter, sort, page)
	if err != nil {
		return ProjectPage{}, err
	}
	return ProjectPage{Projects: projects, Pagination: NewPagination(page, total)}, nil
}

// Featured lists completed featured projects, most recently completed first.
func (service *ProjectService) Featured(ctx context.Context, limit int) ([]model.Project, error) {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	featured := true
	projects, _, err := service.store.ListProjects(ctx,
		storage.ProjectFilter{Status: model.ProjectStatusCompleted, Featured: &featured},
		storage.Sort{Field: "completionDate", Descending: true},
		storage.Page{Number: 1, Limit: limit},
	)
	return projects, err
}

// Categories lists the categories in use with their number of completed projects.
func (service *ProjectService) Categories(ctx context.Context) ([]storage.CategoryCount, error) {
	return service.store.ProjectCategoryCounts(ctx)
}

// GetProject returns the project after counting the read as one view.
func (service *ProjectService) GetProject(ctx context.Context, id string) (model.Project, error) {
	return service.store.IncrementProjectViews(ctx, id)
}

// CreateProject persists a new project. images are attached in order; the first becomes primary.
func (service *ProjectService) CreateProject(ctx context.Context, input ProjectInput, images []model.Attachment, actor string) (model.Project, error) {
	required := []struct {
		field string
		value *string
	}{
		{field: "title", value: input.Title},
		{field: "description", value: input.Description},
		{field: "category", value: input.Category},
		{field: "location", value: input.Location},
	}
	for _, candidate := range required {
		if candidate.value == nil || strings.TrimSpace(*candidate.value) == "" {
			return model.Project{}, fmt.Errorf("%w: %s", ErrMissingProjectField, candidate.field)
		}
	}

	project := model.Project{CreatedBy: actorOrSystem(actor)}
	if err := service.apply(&project, input); err != nil {
		return model.Project{}, err
	}
	project.ApplyDefaults()
	project.AppendImages(service.projectImages(images))

	if err := service.store.CreateProject(ctx, &project); err != nil {
		return model.Project{}, fmt.Errorf("service: create project: %w", err)
	}
	return project, nil
}

// UpdateProject applies the provided fields and appends images to the existing collection.
func (service *ProjectService) UpdateProject(ctx context.Context, id string, input ProjectInput, images []model.Attachment, actor string) (model.Project, error) {
	newImages := service.projectImages(images)
	return service.store.UpdateProject(ctx, id, func(project *model.Project) error {
		if err := service.apply(project, input); err != nil {
			return err
		}
		project.ApplyDefaults()
		project.AppendImages(newImages)
		project.UpdatedBy = actorOrSystem(actor)
		return nil
	})
}

// UpdateProjectStatus changes only the status.
func (service *ProjectService) UpdateProjectStatus(ctx context.Context, id string, status string, actor string) (model.Project, error) {
	if !model.IsProjectStatus(status) {
		return model.Project{}, fmt.Errorf("%w: %s", model.ErrInvalidProjectStatus, status)
	}
	return service.store.UpdateProject(ctx, id, func(project *model.Project) error {
		project.Status = status
		project.UpdatedBy = actorOrSystem(actor)
		return nil
	})
}

// ToggleFeatured flips the featured flag.
func (service *ProjectService) ToggleFeatured(ctx context.Context, id string, actor string) (model.Project, error) {
	return service.store.UpdateProject(ctx, id, func(project *model.Project) error {
		project.Featured = !project.Featured
		project.UpdatedBy = actorOrSystem(actor)
		return nil
	})
}

// DeleteProject removes the project, then deletes its image blobs.
func (service *ProjectService) DeleteProject(ctx context.Context, id string) (model.Project, error) {
	project, err := service.store.DeleteProject(ctx, id)
	if err != nil {
		return model.Project{}, err
	}
	service.blobs.DeleteAttachments(ctx, imageAttachments(project.Images))
	return project, nil
}

// AddProjectImages appends images and reports them with the new collection size.
func (service *ProjectService) AddProjectImages(ctx context.Context, id string, images []model.Attachment, actor string) (ImageBatch, error) {
	added := service.projectImages(images)
	var appended []model.ProjectImage
	project, err := service.store.UpdateProject(ctx, id, func(project *model.Project) error {
		before := len(project.Images)
		project.AppendImages(added)
		appended = append([]model.ProjectImage{}, project.Images[before:]...)
		project.UpdatedBy = actorOrSystem(actor)
		return nil
	})
	if err != nil {
		return ImageBatch{}, err
	}
	return ImageBatch{Images: appended, TotalImages: len(project.Images)}, nil
}

// DeleteProjectImage removes one image and its blob. ErrImageNotFound is returned when the project lacks imageID.
func (service *ProjectService) DeleteProjectImage(ctx context.Context, id string, imageID string, actor string) (model.Project, error) {
	var removed model.ProjectImage
	project, err := service.store.UpdateProject(ctx, id, func(project *model.Project) error {
		image, found := project.RemoveImage(imageID)
		if !found {
			return ErrImageNotFound
		}
		removed = image
		project.UpdatedBy = actorOrSystem(actor)
		return nil
	})
	if err != nil {
		return model.Project{}, err
	}
	service.blobs.DeleteAttachments(ctx, []model.Attachment{removed.Attachment})
	return project, nil
}

// SetPrimaryImage marks imageID primary and clears the flag on every other image.
func (service *ProjectService) SetPrimaryImage(ctx context.Context, id string, imageID string, actor string) (model.Project, error) {
	return service.store.UpdateProject(ctx, id, func(project *model.Project) error {
		if !project.SetPrimaryImage(imageID) {
			return ErrImageNotFound
		}
		project.UpdatedBy = actorOrSystem(actor)
		return nil
	})
}

// ProjectStats aggregates projects per category and overall.
func (service *ProjectService) ProjectStats(ctx context.Context) (storage.ProjectStats, error) {
	return service.store.ProjectStats(ctx)
}

func (service *ProjectService) apply(project *model.Project, input ProjectInput) error {
	if input.Category != nil {
		if !model.IsProjectCategory(*input.Category) {
			return fmt.Errorf("%w: %s", model.ErrInvalidProjectCategory, *input.Category)
		}
		project.Category = *input.Category
	}
	if input.Status != nil && strings.TrimSpace(*input.Status) != "" {
		if !model.IsProjectStatus(*input.Status) {
			return fmt.Errorf("%w: %s", model.ErrInvalidProjectStatus, *input.Status)
		}
		project.Status = *input.Status
	}
	if input.Title != nil {
		project.SetTitle(*input.Title)
	}
	if input.ShortDescription != nil {
		project.ShortDescription = strings.TrimSpace(*input.ShortDescription)
	}
	if input.Description != nil {
		project.SetDescription(*input.Description)
	}
	if input.Location != nil {
		project.Location = strings.TrimSpace(*input.Location)
	}
	if input.Featured != nil {
		project.Featured = *input.Featured
	}
	if input.StartDate != nil {
		startDate := input.StartDate.UTC()
		project.StartDate = &startDate
	}
	if input.CompletionDate != nil {
		completionDate := input.CompletionDate.UTC()
		project.CompletionDate = &completionDate
	}
	if input.Budget != nil {
		project.Budget = *input.Budget
	}
	if input.Size != nil {
		project.Size = *input.Size
	}
	if input.ClientName != nil {
		project.Client.Name = strings.TrimSpace(*input.ClientName)
	}
	if input.ClientWebsite != nil {
		project.Client.Website = strings.TrimSpace(*input.ClientWebsite)
	}
	if input.ClientLogo != nil {
		project.Client.Logo = strings.TrimSpace(*input.ClientLogo)
	}
	if input.Tags != nil {
		project.Tags = model.NormalizeTags(input.Tags)
	}
	return nil
}

func (service *ProjectService) projectImages(attachments []model.Attachment) []model.ProjectImage {
	uploadedAt := service.clock().UTC()
	images := make([]model.ProjectImage, 0, len(attachments))
	for _, attachment := range attachments {
		images = append(images, model.ProjectImage{
			ID:         service.ids.NextID(),
			Attachment: attachment,
			UploadedAt: uploadedAt,
		})
	}
	return images
}

func imageAttachments(images []model.ProjectImage) []model.Attachment {
	attachments := make([]model.Attachment, 0, len(images))
	for _, image := range images {
		attachments = append(attachments, image.Attachment)
	}
	return attachments
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return model.SystemActor
	}
	return actor
}
