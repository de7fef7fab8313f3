package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/zimbuild/sitebackend/internal/auth"
	"github.com/zimbuild/sitebackend/internal/httpapi"
	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/service"
	"github.com/zimbuild/sitebackend/internal/storage"
	"github.com/zimbuild/sitebackend/internal/upload"
	"github.com/zimbuild/sitebackend/internal/validation"
)

const (
	testTokenSecret    = "httpapi-test-secret"
	testUserPassword   = "correct-horse-battery"
	testStaffEmail     = "manager@zimbuild.example"
	testViewerEmail    = "viewer@zimbuild.example"
	authorizationName  = "Authorization"
	bearerTokenPrefix  = "Bearer "
	contentTypeJSON    = "application/json"
	contentTypeForm    = "application/x-www-form-urlencoded"
	contentTypeHeader  = "Content-Type"
	statusEnvelopeOK   = "success"
	statusEnvelopeFail = "error"
)

var pngContent = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0x01}, 64)...)

type recordingNotifier struct {
	mu           sync.Mutex
	inquiries    []model.Contact
	applications []model.Contact
}

func (notifier *recordingNotifier) NotifyInquiry(_ context.Context, contact model.Contact) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.inquiries = append(notifier.inquiries, contact)
	return nil
}

func (notifier *recordingNotifier) NotifyApplication(_ context.Context, contact model.Contact) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.applications = append(notifier.applications, contact)
	return nil
}

type apiHarness struct {
	router      *gin.Engine
	store       *storage.MemoryStore
	blobs       *upload.LocalBlobStore
	notifier    *recordingNotifier
	staffToken  string
	viewerToken string
}

type responseEnvelope struct {
	Status  string                  `json:"status"`
	Message string                  `json:"message"`
	Data    json.RawMessage         `json:"data"`
	Errors  []validation.FieldError `json:"errors"`
}

type formFile struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

func buildAPIHarness(testingT *testing.T, enforce bool) apiHarness {
	testingT.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore(&storage.SequenceAllocator{})
	blobs, blobsErr := upload.NewLocalBlobStore(testingT.TempDir())
	require.NoError(testingT, blobsErr)
	tokens, tokensErr := auth.NewTokens(auth.TokenConfig{Secret: testTokenSecret, TTL: time.Hour})
	require.NoError(testingT, tokensErr)

	notifier := &recordingNotifier{}
	uploads := upload.NewHandler(upload.Config{Blobs: blobs})
	inquiries := service.NewInquiryService(service.InquiryConfig{Store: store, Notifier: notifier})
	projects := service.NewProjectService(service.ProjectConfig{Store: store, Blobs: uploads})
	authorizer := auth.NewAuthorizer(auth.AuthorizerConfig{Enforce: enforce, Tokens: tokens, Users: store})
	validator := validation.New()

	publicHandlers := httpapi.NewPublicHandlers(inquiries, uploads, validator, nil)
	inquiryHandlers := httpapi.NewInquiryHandlers(inquiries, validator, nil)
	projectHandlers := httpapi.NewProjectHandlers(projects, uploads, validator, nil)
	uploadHandlers := httpapi.NewUploadHandlers(uploads, nil)
	authHandlers := httpapi.NewAuthHandlers(auth.NewAccounts(store, tokens, nil), validator, nil)

	router := gin.New()
	router.Use(httpapi.ErrorBoundary(nil))
	router.NoRoute(httpapi.RouteNotFound)
	apiGroup := router.Group("/api")
	apiGroup.GET("/health", httpapi.HealthHandler("test", nil))
	apiGroup.POST("/auth/login", authHandlers.Login)
	apiGroup.GET("/auth/me", authorizer.Require(), authHandlers.Me)

	apiGroup.POST("/contact/inquiry", publicHandlers.SubmitInquiry)
	apiGroup.POST("/contact/career", publicHandlers.SubmitCareerApplication)
	apiGroup.POST("/contact/newsletter", publicHandlers.Subscribe)
	apiGroup.POST("/contact/newsletter/unsubscribe", publicHandlers.Unsubscribe)
	staff := apiGroup.Group("/contact", authorizer.Require(model.RoleAdmin, model.RoleManager))
	staff.GET("/inquiries", inquiryHandlers.ListInquiries)
	staff.GET("/inquiries/:id", inquiryHandlers.GetInquiry)
	staff.PATCH("/inquiries/:id/status", inquiryHandlers.UpdateInquiryStatus)
	staff.POST("/inquiries/:id/notes", inquiryHandlers.AddInquiryNote)
	staff.GET("/stats", inquiryHandlers.InquiryStats)

	apiGroup.GET("/projects", projectHandlers.ListProjects)
	apiGroup.GET("/projects/categories", projectHandlers.Categories)
	apiGroup.GET("/projects/featured", projectHandlers.Featured)
	apiGroup.GET("/projects/stats", authorizer.Require(), projectHandlers.ProjectStats)
	apiGroup.GET("/projects/:id", projectHandlers.GetProject)
	editors := apiGroup.Group("/projects", authorizer.Require(model.RoleAdmin, model.RoleManager, model.RoleEditor))
	editors.POST("", projectHandlers.CreateProject)
	editors.PUT("/:id", projectHandlers.UpdateProject)
	editors.PATCH("/:id/status", projectHandlers.UpdateProjectStatus)
	editors.PATCH("/:id/featured", projectHandlers.ToggleFeatured)
	editors.DELETE("/:id", projectHandlers.DeleteProject)
	editors.POST("/:id/images", projectHandlers.AddProjectImages)
	editors.DELETE("/:id/images/:imageId", projectHandlers.DeleteProjectImage)
	editors.PATCH("/:id/images/:imageId/primary", projectHandlers.SetPrimaryImage)

	apiGroup.GET("/uploads/info/:filename", uploadHandlers.Info)
	apiGroup.POST("/uploads/single", authorizer.Require(), uploadHandlers.UploadSingle)
	apiGroup.POST("/uploads/multiple", authorizer.Require(), uploadHandlers.UploadMultiple)
	apiGroup.DELETE("/uploads/:filename", authorizer.Require(), uploadHandlers.Delete)

	return apiHarness{
		router:      router,
		store:       store,
		blobs:       blobs,
		notifier:    notifier,
		staffToken:  issueTestToken(testingT, store, tokens, testStaffEmail, model.RoleManager),
		viewerToken: issueTestToken(testingT, store, tokens, testViewerEmail, model.RoleViewer),
	}
}

func issueTestToken(testingT *testing.T, store *storage.MemoryStore, tokens *auth.Tokens, email string, role model.UserRole) string {
	testingT.Helper()
	user, userErr := model.NewUser(model.UserInput{Name: "Test " + string(role), Email: email, Password: testUserPassword, Role: string(role)})
	require.NoError(testingT, userErr)
	require.NoError(testingT, store.CreateUser(context.Background(), &user))
	token, _, issueErr := tokens.Issue(user)
	require.NoError(testingT, issueErr)
	return token
}

func (harness apiHarness) perform(request *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		request.Header.Set(authorizationName, bearerTokenPrefix+token)
	}
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	return recorder
}

func (harness apiHarness) performJSON(testingT *testing.T, method string, path string, payload any, token string) *httptest.ResponseRecorder {
	testingT.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, encodeErr := json.Marshal(payload)
		require.NoError(testingT, encodeErr)
		body = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, body)
	request.Header.Set(contentTypeHeader, contentTypeJSON)
	return harness.perform(request, token)
}

func (harness apiHarness) performForm(method string, path string, values url.Values, token string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	request.Header.Set(contentTypeHeader, contentTypeForm)
	return harness.perform(request, token)
}

func (harness apiHarness) performMultipart(testingT *testing.T, method string, path string, fields map[string]string, files []formFile, token string) *httptest.ResponseRecorder {
	testingT.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		require.NoError(testingT, writer.WriteField(name, value))
	}
	for _, file := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, file.field, file.filename))
		header.Set(contentTypeHeader, file.contentType)
		part, partErr := writer.CreatePart(header)
		require.NoError(testingT, partErr)
		_, writeErr := part.Write(file.content)
		require.NoError(testingT, writeErr)
	}
	require.NoError(testingT, writer.Close())

	request := httptest.NewRequest(method, path, body)
	request.Header.Set(contentTypeHeader, writer.FormDataContentType())
	return harness.perform(request, token)
}

func decodeEnvelope(testingT *testing.T, recorder *httptest.ResponseRecorder, data any) responseEnvelope {
	testingT.Helper()
	var envelope responseEnvelope
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), &envelope), recorder.Body.String())
	if data != nil {
		require.NoError(testingT, json.Unmarshal(envelope.Data, data), recorder.Body.String())
	}
	return envelope
}

func fieldMessages(envelope responseEnvelope) map[string]string {
	messages := make(map[string]string, len(envelope.Errors))
	for _, fieldError := range envelope.Errors {
		messages[fieldError.Field] = fieldError.Message
	}
	return messages
}

func mustField(testingT *testing.T, body []byte, field string) json.RawMessage {
	testingT.Helper()
	var fields map[string]json.RawMessage
	require.NoError(testingT, json.Unmarshal(body, &fields))
	value, found := fields[field]
	require.True(testingT, found, field)
	return value
}
