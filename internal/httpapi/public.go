package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/service"
	"github.com/zimbuild/sitebackend/internal/upload"
	"github.com/zimbuild/sitebackend/internal/validation"
)

const (
	messageInquirySubmitted     = "Thank you for your inquiry. We will contact you soon."
	messageApplicationSubmitted = "Application submitted successfully. We will review your application."
	messageSubscribed           = "Successfully subscribed to our newsletter!"
	messageUnsubscribed         = "Successfully unsubscribed from our newsletter."
	messageSubscriberNotFound   = "Email is not subscribed to our newsletter."

	formFieldResume = "resume"
	formFieldCV     = "cv"

	logEventCareerUploadRejected = "career_upload_rejected"
)

// PublicHandlers serves the unauthenticated contact, career and newsletter forms.
type PublicHandlers struct {
	inquiries *service.InquiryService
	uploads   *upload.Handler
	validator *validation.Validator
	logger    *zap.Logger
}

func NewPublicHandlers(inquiries *service.InquiryService, uploads *upload.Handler, validator *validation.Validator, logger *zap.Logger) *PublicHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = validation.New()
	}
	return &PublicHandlers{
		inquiries: inquiries,
		uploads:   uploads,
		validator: validator,
		logger:    logger,
	}
}

func (handlers *PublicHandlers) SubmitInquiry(context *gin.Context) {
	var request inquiryRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	contact, err := handlers.inquiries.SubmitInquiry(context.Request.Context(), request.toInput(context))
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusCreated, messageInquirySubmitted, gin.H{
		"inquiryId":   contact.ID,
		"submittedAt": timestamp(contact.CreatedAt),
	})
}

// SubmitCareerApplication accepts a JSON or multipart application. A multipart body may carry one résumé.
func (handlers *PublicHandlers) SubmitCareerApplication(context *gin.Context) {
	var request careerRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	references, err := acceptFiles(context, handlers.uploads, upload.Rules{MaxFiles: 1, Fields: []string{formFieldResume, formFieldCV}})
	if err != nil {
		handlers.logger.Info(logEventCareerUploadRejected, zap.Error(err))
		_ = context.Error(err)
		return
	}

	var resume *model.Attachment
	if len(references) > 0 {
		attachment := references[0].Attachment()
		resume = &attachment
	}
	contact, err := handlers.inquiries.SubmitCareerApplication(context.Request.Context(), request.toInput(context), resume)
	if err != nil {
		handlers.uploads.Cleanup(context.Request.Context(), references)
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusCreated, messageApplicationSubmitted, gin.H{
		"applicationId": contact.ID,
		"position":      contact.Position,
		"submittedAt":   timestamp(contact.CreatedAt),
	})
}

func (handlers *PublicHandlers) Subscribe(context *gin.Context) {
	var request subscribeRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	subscriber, err := handlers.inquiries.SubscribeToNewsletter(context.Request.Context(), request.toInput(context))
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusCreated, messageSubscribed, gin.H{
		"email":        subscriber.Email,
		"subscribedAt": timestamp(subscriber.CreatedAt),
	})
}

func (handlers *PublicHandlers) Unsubscribe(context *gin.Context) {
	var request unsubscribeRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	subscriber, err := handlers.inquiries.Unsubscribe(context.Request.Context(), request.Email)
	if err != nil {
		_ = context.Error(labelNotFound(err, messageSubscriberNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, messageUnsubscribed, gin.H{"email": subscriber.Email})
}

// acceptFiles stores the files of a multipart request. Other content types carry no files.
func acceptFiles(context *gin.Context, uploads *upload.Handler, rules upload.Rules) ([]upload.Reference, error) {
	if uploads == nil || !strings.HasPrefix(context.ContentType(), "multipart/") {
		return []upload.Reference{}, nil
	}
	form, err := context.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return uploads.Accept(context.Request.Context(), form, rules)
}

func attachmentsOf(references []upload.Reference) []model.Attachment {
	attachments := make([]model.Attachment, 0, len(references))
	for _, reference := range references {
		attachments = append(attachments, reference.Attachment())
	}
	return attachments
}
