package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/auth"
	"github.com/zimbuild/sitebackend/internal/service"
	"github.com/zimbuild/sitebackend/internal/storage"
	"github.com/zimbuild/sitebackend/internal/validation"
)

const (
	messageInquiryNotFound      = "Inquiry not found."
	messageInquiryStatusUpdated = "Inquiry status updated successfully."
	messageInquiryNoteAdded     = "Note added successfully."

	queryKeyType   = "type"
	queryKeyStatus = "status"
)

var inquiryFilterKeys = []string{queryKeyType, queryKeyStatus}

// InquiryHandlers serves the staff-facing inquiry routes.
type InquiryHandlers struct {
	inquiries *service.InquiryService
	validator *validation.Validator
	logger    *zap.Logger
}

func NewInquiryHandlers(inquiries *service.InquiryService, validator *validation.Validator, logger *zap.Logger) *InquiryHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = validation.New()
	}
	return &InquiryHandlers{inquiries: inquiries, validator: validator, logger: logger}
}

func (handlers *InquiryHandlers) ListInquiries(context *gin.Context) {
	query := context.Request.URL.Query()
	if err := validation.CheckFilters(query, inquiryFilterKeys); err != nil {
		_ = context.Error(err)
		return
	}
	page, err := validation.ParsePage(query, service.DefaultInquiryLimit)
	if err != nil {
		_ = context.Error(err)
		return
	}
	filter := storage.ContactFilter{Type: query.Get(queryKeyType), Status: query.Get(queryKeyStatus)}
	result, err := handlers.inquiries.ListInquiries(context.Request.Context(), filter, page)
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusOK, "", gin.H{
		"inquiries":  presentContacts(result.Inquiries),
		"pagination": result.Pagination,
	})
}

func (handlers *InquiryHandlers) GetInquiry(context *gin.Context) {
	contact, err := handlers.inquiries.GetInquiry(context.Request.Context(), context.Param("id"))
	if err != nil {
		_ = context.Error(labelNotFound(err, messageInquiryNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, "", gin.H{"inquiry": presentContact(contact)})
}

func (handlers *InquiryHandlers) UpdateInquiryStatus(context *gin.Context) {
	var request inquiryStatusRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	contact, err := handlers.inquiries.UpdateInquiryStatus(
		context.Request.Context(),
		context.Param("id"),
		request.Status,
		optionalString(request.Note),
		auth.ActorID(context),
	)
	if err != nil {
		_ = context.Error(labelNotFound(err, messageInquiryNotFound))
		return
	}
	respondSuccess(context, http.StatusOK, messageInquiryStatusUpdated, gin.H{"inquiry": presentContact(contact)})
}

func (handlers *InquiryHandlers) AddInquiryNote(context *gin.Context) {
	var request inquiryNoteRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	contact, err := handlers.inquiries.AddInquiryNote(context.Request.Context(), context.Param("id"), request.Content, auth.ActorID(context))
	if err != nil {
		_ = context.Error(labelNotFound(err, messageInquiryNotFound))
		return
	}
	respondSuccess(context, http.StatusCreated, messageInquiryNoteAdded, gin.H{"inquiry": presentContact(contact)})
}

func (handlers *InquiryHandlers) InquiryStats(context *gin.Context) {
	stats, err := handlers.inquiries.InquiryStats(context.Request.Context())
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusOK, "", gin.H{"stats": stats})
}
