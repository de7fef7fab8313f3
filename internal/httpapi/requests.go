package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/service"
	"github.com/zimbuild/sitebackend/internal/validation"
)

const multipartMemoryLimit = 32 << 20

// bindRequest decodes the JSON or form body into target, trims it and evaluates its validate tags.
func bindRequest(context *gin.Context, validator *validation.Validator, target any) error {
	if err := context.ShouldBind(target); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	validation.Sanitize(target)
	return validator.Struct(target)
}

func optionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// tagList accepts a JSON array, a JSON string or repeated form values. Every value may hold comma separated tags.
type tagList []string

func (tags *tagList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var joined string
		if err := json.Unmarshal(trimmed, &joined); err != nil {
			return err
		}
		*tags = tagList{joined}
		return nil
	}
	var values []string
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return err
	}
	*tags = values
	return nil
}

func (tags tagList) split() []string {
	if tags == nil {
		return nil
	}
	split := []string{}
	for _, value := range tags {
		split = append(split, model.SplitTags(value)...)
	}
	return split
}

type inquiryRequest struct {
	Type    string  `json:"type" form:"type" validate:"omitempty,oneof=general partnership" message:"Inquiry type must be general or partnership"`
	Name    string  `json:"name" form:"name" validate:"required,min=2,max=100" message:"Name must be between 2 and 100 characters"`
	Email   string  `json:"email" form:"email" validate:"required,email" message:"Please provide a valid email"`
	Phone   *string `json:"phone" form:"phone" validate:"omitempty,phone" message:"Please provide a valid phone number"`
	Company *string `json:"company" form:"company" validate:"omitempty,max=100" message:"Company must not exceed 100 characters"`
	Subject string  `json:"subject" form:"subject" validate:"required,min=5,max=200" message:"Subject must be between 5 and 200 characters"`
	Message string  `json:"message" form:"message" validate:"required,min=10,max=2000" message:"Message must be between 10 and 2000 characters"`
}

func (request inquiryRequest) toInput(context *gin.Context) service.InquiryInput {
	return service.InquiryInput{
		Type:      request.Type,
		Name:      request.Name,
		Email:     request.Email,
		Phone:     optionalString(request.Phone),
		Company:   optionalString(request.Company),
		Subject:   request.Subject,
		Message:   request.Message,
		IPAddress: context.ClientIP(),
		UserAgent: context.Request.UserAgent(),
	}
}

type careerRequest struct {
	FullName    string  `json:"fullName" form:"fullName" validate:"required,min=2,max=100" message:"Full name must be between 2 and 100 characters"`
	Email       string  `json:"email" form:"email" validate:"required,email" message:"Please provide a valid email"`
	Phone       string  `json:"phone" form:"phone" validate:"required,phone" message:"Please provide a valid phone number"`
	Position    string  `json:"position" form:"position" validate:"required,min=2,max=100" message:"Position must be between 2 and 100 characters"`
	Experience  string  `json:"experience" form:"experience" validate:"required,experience" message:"Please select valid experience range"`
	CoverLetter *string `json:"coverLetter" form:"coverLetter" validate:"omitempty,max=5000" message:"Cover letter must not exceed 5000 characters"`
}

func (request careerRequest) toInput(context *gin.Context) service.CareerInput {
	return service.CareerInput{
		Name:        request.FullName,
		Email:       request.Email,
		Phone:       request.Phone,
		Position:    request.Position,
		Experience:  request.Experience,
		CoverLetter: optionalString(request.CoverLetter),
		IPAddress:   context.ClientIP(),
		UserAgent:   context.Request.UserAgent(),
	}
}

type subscribeRequest struct {
	Email       string                       `json:"email" form:"email" validate:"required,email" message:"Please provide a valid email"`
	Name        *string                      `json:"name" form:"name" validate:"omitempty,max=100" message:"Name must not exceed 100 characters"`
	Source      *string                      `json:"source" form:"source" validate:"omitempty,max=32"`
	Preferences *model.SubscriberPreferences `json:"preferences" form:"-"`
}

func (request subscribeRequest) toInput(context *gin.Context) service.SubscribeInput {
	return service.SubscribeInput{
		Email:       request.Email,
		Name:        optionalString(request.Name),
		Source:      optionalString(request.Source),
		Preferences: request.Preferences,
		IPAddress:   context.ClientIP(),
		UserAgent:   context.Request.UserAgent(),
	}
}

type unsubscribeRequest struct {
	Email string `json:"email" form:"email" validate:"required,email" message:"Please provide a valid email"`
}

type inquiryStatusRequest struct {
	Status string  `json:"status" form:"status" validate:"required,oneof=new contacted in-progress resolved spam" message:"Invalid status"`
	Note   *string `json:"note" form:"note" validate:"omitempty,max=1000" message:"Note must not exceed 1000 characters"`
}

type inquiryNoteRequest struct {
	Content string `json:"content" form:"content" validate:"required,max=1000" message:"Note content is required and must not exceed 1000 characters"`
}

type projectStatusRequest struct {
	Status string `json:"status" form:"status" validate:"required,oneof=planning in-progress completed on-hold" message:"Invalid status"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email" message:"Please provide a valid email"`
	Password string `json:"password" form:"password" validate:"required" message:"Password is required"`
}

// projectCreateRequest and projectUpdateRequest share one field set so one converts into the other.
type projectCreateRequest struct {
	Title            *string      `json:"title" form:"title" validate:"required,min=5,max=200" message:"Title must be between 5 and 200 characters"`
	Description      *string      `json:"description" form:"description" validate:"required,min=10,max=2000" message:"Description must be between 10 and 2000 characters"`
	ShortDescription *string      `json:"shortDescription" form:"shortDescription" validate:"omitempty,max=300" message:"Short description must not exceed 300 characters"`
	Category         *string      `json:"category" form:"category" validate:"required,oneof=commercial residential infrastructure healthcare education other" message:"Invalid category"`
	Location         *string      `json:"location" form:"location" validate:"required,min=2,max=100" message:"Location must be between 2 and 100 characters"`
	Status           *string      `json:"status" form:"status" validate:"required,oneof=planning in-progress completed on-hold" message:"Invalid status"`
	Featured         *bool        `json:"featured" form:"featured"`
	StartDate        *string      `json:"startDate" form:"startDate" validate:"omitempty,iso8601" message:"Invalid start date"`
	CompletionDate   *string      `json:"completionDate" form:"completionDate" validate:"omitempty,iso8601" message:"Invalid completion date"`
	Budget           *json.Number `json:"budget" form:"budget" validate:"omitempty,numeric" message:"Budget must be a number"`
	BudgetCurrency   *string      `json:"budgetCurrency" form:"budgetCurrency" validate:"omitempty,len=3" message:"Currency must be a 3 letter code"`
	Size             *json.Number `json:"size" form:"size" validate:"omitempty,numeric" message:"Size must be a number"`
	SizeUnit         *string      `json:"sizeUnit" form:"sizeUnit" validate:"omitempty,max=16"`
	ClientName       *string      `json:"clientName" form:"clientName" validate:"omitempty,max=200"`
	ClientWebsite    *string      `json:"clientWebsite" form:"clientWebsite" validate:"omitempty,url" message:"Client website must be a valid URL"`
	ClientLogo       *string      `json:"clientLogo" form:"clientLogo" validate:"omitempty,max=500"`
	Tags             tagList      `json:"tags" form:"tags"`
}

type projectUpdateRequest struct {
	Title            *string      `json:"title" form:"title" validate:"omitempty,min=5,max=200" message:"Title must be between 5 and 200 characters"`
	Description      *string      `json:"description" form:"description" validate:"omitempty,min=10,max=2000" message:"Description must be between 10 and 2000 characters"`
	ShortDescription *string      `json:"shortDescription" form:"shortDescription" validate:"omitempty,max=300" message:"Short description must not exceed 300 characters"`
	Category         *string      `json:"category" form:"category" validate:"omitempty,oneof=commercial residential infrastructure healthcare education other" message:"Invalid category"`
	Location         *string      `json:"location" form:"location" validate:"omitempty,min=2,max=100" message:"Location must be between 2 and 100 characters"`
	Status           *string      `json:"status" form:"status" validate:"omitempty,oneof=planning in-progress completed on-hold" message:"Invalid status"`
	Featured         *bool        `json:"featured" form:"featured"`
	StartDate        *string      `json:"startDate" form:"startDate" validate:"omitempty,iso8601" message:"Invalid start date"`
	CompletionDate   *string      `json:"completionDate" form:"completionDate" validate:"omitempty,iso8601" message:"Invalid completion date"`
	Budget           *json.Number `json:"budget" form:"budget" validate:"omitempty,numeric" message:"Budget must be a number"`
	BudgetCurrency   *string      `json:"budgetCurrency" form:"budgetCurrency" validate:"omitempty,len=3" message:"Currency must be a 3 letter code"`
	Size             *json.Number `json:"size" form:"size" validate:"omitempty,numeric" message:"Size must be a number"`
	SizeUnit         *string      `json:"sizeUnit" form:"sizeUnit" validate:"omitempty,max=16"`
	ClientName       *string      `json:"clientName" form:"clientName" validate:"omitempty,max=200"`
	ClientWebsite    *string      `json:"clientWebsite" form:"clientWebsite" validate:"omitempty,url" message:"Client website must be a valid URL"`
	ClientLogo       *string      `json:"clientLogo" form:"clientLogo" validate:"omitempty,max=500"`
	Tags             tagList      `json:"tags" form:"tags"`
}

func (request projectUpdateRequest) toInput() service.ProjectInput {
	input := service.ProjectInput{
		Title:            request.Title,
		Description:      request.Description,
		ShortDescription: request.ShortDescription,
		Category:         request.Category,
		Location:         request.Location,
		Status:           request.Status,
		Featured:         request.Featured,
		StartDate:        parseOptionalDate(request.StartDate),
		CompletionDate:   parseOptionalDate(request.CompletionDate),
		ClientName:       request.ClientName,
		ClientWebsite:    request.ClientWebsite,
		ClientLogo:       request.ClientLogo,
		Tags:             request.Tags.split(),
	}
	if request.Budget != nil {
		input.Budget = &model.Budget{
			Amount:   parseNumber(*request.Budget),
			Currency: strings.ToUpper(optionalString(request.BudgetCurrency)),
		}
	}
	if request.Size != nil {
		input.Size = &model.ProjectSize{
			Value: parseNumber(*request.Size),
			Unit:  optionalString(request.SizeUnit),
		}
	}
	return input
}

func parseOptionalDate(value *string) *time.Time {
	if value == nil {
		return nil
	}
	parsed, ok := validation.ParseISO8601(*value)
	if !ok {
		return nil
	}
	return &parsed
}

func parseNumber(value json.Number) float64 {
	parsed, err := strconv.ParseFloat(value.String(), 64)
	if err != nil {
		return 0
	}
	return parsed
}
