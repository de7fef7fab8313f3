package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/auth"
	"github.com/zimbuild/sitebackend/internal/service"
	"github.com/zimbuild/sitebackend/internal/storage"
	"github.com/zimbuild/sitebackend/internal/upload"
	"github.com/zimbuild/sitebackend/internal/validation"
)

const (
	messageProjectNotFound      = "Project not found."
	messageProjectCreated       = "Project created successfully."
	messageProjectUpdated       = "Project updated successfully."
	messageProjectStatusUpdated = "Project status updated successfully."
	messageProjectDeleted       = "Project deleted successfully."
	messageProjectFeatured      = "Project featured flag updated successfully."
	messageImagesAdded          = "Images added successfully."
	messageImageDeleted         = "Image deleted successfully."
	messagePrimaryImageSet      = "Primary image updated successfully."
	messageNoImagesUploaded     = "No images uploaded."
	messageInvalidFeatured      = "Featured must be true or false"

	formFieldImages = "images"

	// MaxImagesPerProjectWrite bounds images sent with a project create or update.
	MaxImagesPerProjectWrite = 10
	// MaxImagesPerBatch bounds images appended through the images route.
	MaxImagesPerBatch = 5

	queryKeyCategory = "category"
	queryKeyFeatured = "featured"
)

var projectFilterKeys = []string{queryKeyCategory, queryKeyStatus, queryKeyFeatured}

// ProjectHandlers serves the project portfolio routes.
type ProjectHandlers struct {
	projects  *service.ProjectService
	uploads   *upload.Handler
	validator *validation.Validator
	logger    *zap.Logger
}

func NewProjectHandlers(projects *service.ProjectService, uploads *upload.Handler, validator *validation.Validator, logger *zap.Logger) *ProjectHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = validation.New()
	}
	return &ProjectHandlers{projects: projects, uploads: uploads, validator: validator, logger: logger}
}

func (handlers *ProjectHandlers) ListProjects(context *gin.Context) {
	query := context.Request.URL.Query()
	if err := validation.CheckFilters(query, projectFilterKeys); err != nil {
		_ = context.Error(err)
		return
	}
	page, err := validation.ParsePage(query, service.DefaultProjectLimit)
	if err != nil {
		_ = context.Error(err)
		return
	}
	order, err := validation.CheckSort(query.Get(validation.QueryKeySort), service.ProjectSortFields, service.DefaultProjectSort)
	if err != nil {
		_ = context.Error(err)
		return
	}
	filter := storage.ProjectFilter{Category: query.Get(queryKeyCategory), Status: query.Get(queryKeyStatus)}
	if raw := strings.TrimSpace(query.Get(queryKeyFeatured)); raw != "" {
		featured, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			_ = context.Error(&validation.QueryError{Message: messageInvalidFeatured})
			return
		}
		filter.Featured = &featured
	}

	result, err := handlers.projects.ListProjects(context.Request.Context(), filter, order, page)
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusOK, "", gin.H{
		"projects":   presentProjects(result.Projects),
		"pagination": result.Pagination,
	})
}

func (handlers *ProjectHandlers) Categories(context *gin.Context) {
	categories, err := handlers.projects.Categories(context.Request.Context())
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusOK, "", gin.H{"categories": categories})
}

func (handlers *ProjectHandlers) Featured(context *gin.Context) {
	limit := service.DefaultFeaturedLimit
	if raw := strings.TrimSpace(context.Query(validation.QueryKeyLimit)); raw != "" {
		page, err := validation.ParsePage(context.Request.URL.Query(), limit)
		if err != nil {
			_ = context.Error(err)
			return
		}
		limit = page.Limit
	}
	projects, err := handlers.projects.Featured(context.Request.Context(), limit)
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusOK, "", gin.H{"projects": presentProjects(projects)})
}

func (handlers *ProjectHandlers) GetProject(context *gin.Context) {
	project, err := handlers.projects.GetProject(context.Request.Context(), context.Param("id"))
	if err != nil {
		_ = context.Error(labelNotFound(err, messageProjectNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, "", gin.H{"project": presentProject(project)})
}

func (handlers *ProjectHandlers) CreateProject(context *gin.Context) {
	var request projectCreateRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	references, err := handlers.acceptImages(context, MaxImagesPerProjectWrite)
	if err != nil {
		_ = context.Error(err)
		return
	}
	project, err := handlers.projects.CreateProject(
		context.Request.Context(),
		projectUpdateRequest(request).toInput(),
		attachmentsOf(references),
		auth.ActorID(context),
	)
	if err != nil {
		handlers.uploads.Cleanup(context.Request.Context(), references)
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusCreated, messageProjectCreated, gin.H{"project": presentProject(project)})
}

func (handlers *ProjectHandlers) UpdateProject(context *gin.Context) {
	var request projectUpdateRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	references, err := handlers.acceptImages(context, MaxImagesPerProjectWrite)
	if err != nil {
		_ = context.Error(err)
		return
	}
	project, err := handlers.projects.UpdateProject(
		context.Request.Context(),
		context.Param("id"),
		request.toInput(),
		attachmentsOf(references),
		auth.ActorID(context),
	)
	if err != nil {
		handlers.uploads.Cleanup(context.Request.Context(), references)
		_ = context.Error(labelNotFound(err, messageProjectNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, messageProjectUpdated, gin.H{"project": presentProject(project)})
}

func (handlers *ProjectHandlers) UpdateProjectStatus(context *gin.Context) {
	var request projectStatusRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	project, err := handlers.projects.UpdateProjectStatus(context.Request.Context(), context.Param("id"), request.Status, auth.ActorID(context))
	if err != nil {
		_ = context.Error(labelNotFound(err, messageProjectNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, messageProjectStatusUpdated, gin.H{"project": presentProject(project)})
}

func (handlers *ProjectHandlers) ToggleFeatured(context *gin.Context) {
	project, err := handlers.projects.ToggleFeatured(context.Request.Context(), context.Param("id"), auth.ActorID(context))
	if err != nil {
		_ = context.Error(labelNotFound(err, messageProjectNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, messageProjectFeatured, gin.H{"project": presentProject(project)})
}

func (handlers *ProjectHandlers) DeleteProject(context *gin.Context) {
	if _, err := handlers.projects.DeleteProject(context.Request.Context(), context.Param("id")); err != nil {
		_ = context.Error(labelNotFound(err, messageProjectNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, messageProjectDeleted, nil)
}

func (handlers *ProjectHandlers) AddProjectImages(context *gin.Context) {
	references, err := handlers.acceptImages(context, MaxImagesPerBatch)
	if err != nil {
		_ = context.Error(err)
		return
	}
	if len(references) == 0 {
		respondError(context, http.StatusBadRequest, messageNoImagesUploaded, nil)
		return
	}
	batch, err := handlers.projects.AddProjectImages(context.Request.Context(), context.Param("id"), attachmentsOf(references), auth.ActorID(context))
	if err != nil {
		handlers.uploads.Cleanup(context.Request.Context(), references)
		_ = context.Error(labelNotFound(err, messageProjectNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, messageImagesAdded, batch)
}

func (handlers *ProjectHandlers) DeleteProjectImage(context *gin.Context) {
	project, err := handlers.projects.DeleteProjectImage(context.Request.Context(), context.Param("id"), context.Param("imageId"), auth.ActorID(context))
	if err != nil {
		_ = context.Error(labelNotFound(err, messageProjectNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, messageImageDeleted, gin.H{"totalImages": len(project.Images)})
}

func (handlers *ProjectHandlers) SetPrimaryImage(context *gin.Context) {
	project, err := handlers.projects.SetPrimaryImage(context.Request.Context(), context.Param("id"), context.Param("imageId"), auth.ActorID(context))
	if err != nil {
		_ = context.Error(labelNotFound(err, messageProjectNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, messagePrimaryImageSet, gin.H{"project": presentProject(project)})
}

func (handlers *ProjectHandlers) ProjectStats(context *gin.Context) {
	stats, err := handlers.projects.ProjectStats(context.Request.Context())
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusOK, "", stats)
}

func (handlers *ProjectHandlers) acceptImages(context *gin.Context, maxFiles int) ([]upload.Reference, error) {
	return acceptFiles(context, handlers.uploads, upload.Rules{MaxFiles: maxFiles, Fields: []string{formFieldImages}})
}
