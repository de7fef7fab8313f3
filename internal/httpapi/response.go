package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/validation"
)

const (
	envelopeStatusSuccess = "success"
	envelopeStatusError   = "error"
)

type envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  validation.Errors `json:"errors,omitempty"`
}

func respondSuccess(context *gin.Context, status int, message string, data any) {
	context.JSON(status, envelope{Status: envelopeStatusSuccess, Message: message, Data: data})
}

func respondError(context *gin.Context, status int, message string, fieldErrors validation.Errors) {
	context.AbortWithStatusJSON(status, envelope{Status: envelopeStatusError, Message: message, Errors: fieldErrors})
}

// contactView adds read-time derived fields to a contact.
type contactView struct {
	model.Contact
	FormattedPhone string `json:"formattedPhone,omitempty"`
}

func presentContact(contact model.Contact) contactView {
	return contactView{Contact: contact, FormattedPhone: model.FormattedPhone(contact.Phone)}
}

func presentContacts(contacts []model.Contact) []contactView {
	views := make([]contactView, 0, len(contacts))
	for _, contact := range contacts {
		views = append(views, presentContact(contact))
	}
	return views
}

// projectView adds read-time derived fields to a project.
type projectView struct {
	model.Project
	StatusText      string `json:"statusText"`
	FormattedBudget string `json:"formattedBudget"`
	FormattedSize   string `json:"formattedSize,omitempty"`
	Duration        string `json:"duration,omitempty"`
}

func presentProject(project model.Project) projectView {
	return projectView{
		Project:         project,
		StatusText:      project.StatusText(),
		FormattedBudget: project.FormattedBudget(),
		FormattedSize:   project.FormattedSize(),
		Duration:        project.Duration(),
	}
}

func presentProjects(projects []model.Project) []projectView {
	views := make([]projectView, 0, len(projects))
	for _, project := range projects {
		views = append(views, presentProject(project))
	}
	return views
}

func timestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}
