package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zimbuild/sitebackend/internal/model"
)

const (
	projectsPath           = "/api/projects"
	testProjectTitle       = "Sandton Medical Centre"
	testProjectDescription = "A four storey day hospital with theatres, consulting rooms and basement parking."
	testProjectLocation    = "Sandton, Johannesburg"
)

type projectPayload struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	Slug            string               `json:"slug"`
	Category        string               `json:"category"`
	Status          string               `json:"status"`
	StatusText      string               `json:"statusText"`
	Featured        bool                 `json:"featured"`
	Views           int64                `json:"views"`
	Tags            []string             `json:"tags"`
	Budget          model.Budget         `json:"budget"`
	FormattedBudget string               `json:"formattedBudget"`
	Client          model.Client         `json:"client"`
	Images          []model.ProjectImage `json:"images"`
	CreatedBy       string               `json:"createdBy"`
	UpdatedBy       string               `json:"updatedBy"`
}

func validProjectPayload() map[string]any {
	return map[string]any{
		"title":          testProjectTitle,
		"description":    testProjectDescription,
		"category":       model.ProjectCategoryHealthcare,
		"location":       testProjectLocation,
		"status":         model.ProjectStatusInProgress,
		"budget":         25000000,
		"budgetCurrency": "zar",
		"startDate":      "2024-02-01",
		"tags":           "healthcare, steel frame",
		"clientName":     "Gauteng Health",
	}
}

func createTestProject(testingT *testing.T, harness apiHarness, payload map[string]any, token string) projectPayload {
	testingT.Helper()
	recorder := harness.performJSON(testingT, http.MethodPost, projectsPath, payload, token)
	require.Equal(testingT, http.StatusCreated, recorder.Code, recorder.Body.String())
	var data struct {
		Project projectPayload `json:"project"`
	}
	decodeEnvelope(testingT, recorder, &data)
	return data.Project
}

func TestCreateProjectInBypassModeUsesSystemActor(testingT *testing.T) {
	harness := buildAPIHarness(testingT, false)

	project := createTestProject(testingT, harness, validProjectPayload(), "")
	require.Equal(testingT, model.SystemActor, project.CreatedBy)
	require.Equal(testingT, testProjectTitle, project.Title)
	require.Equal(testingT, "sandton-medical-centre", project.Slug)
	require.Equal(testingT, "In Progress", project.StatusText)
	require.Equal(testingT, []string{"healthcare", "steel frame"}, project.Tags)
	require.Equal(testingT, "ZAR", project.Budget.Currency)
	require.True(testingT, strings.HasPrefix(project.FormattedBudget, "R "), project.FormattedBudget)
	require.Equal(testingT, "Gauteng Health", project.Client.Name)
}

func TestProjectMutationsRequireEditorRole(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)

	anonymous := harness.performJSON(testingT, http.MethodPost, projectsPath, validProjectPayload(), "")
	require.Equal(testingT, http.StatusUnauthorized, anonymous.Code)

	viewer := harness.performJSON(testingT, http.MethodPost, projectsPath, validProjectPayload(), harness.viewerToken)
	require.Equal(testingT, http.StatusForbidden, viewer.Code)

	project := createTestProject(testingT, harness, validProjectPayload(), harness.staffToken)
	require.NotEqual(testingT, model.SystemActor, project.CreatedBy)
	require.NotEmpty(testingT, project.CreatedBy)
}

func TestCreateProjectFromMultipartWithImages(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)

	fields := map[string]string{
		"title":       testProjectTitle,
		"description": testProjectDescription,
		"category":    model.ProjectCategoryHealthcare,
		"location":    testProjectLocation,
		"status":      model.ProjectStatusCompleted,
		"featured":    "true",
		"budget":      "1250000.50",
	}
	recorder := harness.performMultipart(testingT, http.MethodPost, projectsPath, fields, []formFile{
		{field: "images[]", filename: "front.png", contentType: "image/png", content: pngContent},
		{field: "images[]", filename: "lobby.png", contentType: "image/png", content: pngContent},
	}, harness.staffToken)
	require.Equal(testingT, http.StatusCreated, recorder.Code, recorder.Body.String())

	var data struct {
		Project projectPayload `json:"project"`
	}
	decodeEnvelope(testingT, recorder, &data)
	require.True(testingT, data.Project.Featured)
	require.InDelta(testingT, 1250000.50, data.Project.Budget.Amount, 0.001)
	require.Len(testingT, data.Project.Images, 2)
	require.True(testingT, data.Project.Images[0].IsPrimary)
	require.False(testingT, data.Project.Images[1].IsPrimary)
	require.Equal(testingT, "front.png", data.Project.Images[0].OriginalName)
	require.Len(testingT, storedBlobNames(testingT, harness), 2)
}

func TestCreateProjectRejectsInvalidFields(testingT *testing.T) {
	testCases := []struct {
		name            string
		mutate          func(map[string]any)
		expectedField   string
		expectedMessage string
	}{
		{
			name:            "missing title",
			mutate:          func(payload map[string]any) { delete(payload, "title") },
			expectedField:   "title",
			expectedMessage: "Title must be between 5 and 200 characters",
		},
		{
			name:            "unknown category",
			mutate:          func(payload map[string]any) { payload["category"] = "mansion" },
			expectedField:   "category",
			expectedMessage: "Invalid category",
		},
		{
			name:            "unknown status",
			mutate:          func(payload map[string]any) { payload["status"] = "abandoned" },
			expectedField:   "status",
			expectedMessage: "Invalid status",
		},
		{
			name:            "bad start date",
			mutate:          func(payload map[string]any) { payload["startDate"] = "31/12/2024" },
			expectedField:   "startDate",
			expectedMessage: "Invalid start date",
		},
		{
			name:            "bad client website",
			mutate:          func(payload map[string]any) { payload["clientWebsite"] = "not a url" },
			expectedField:   "clientWebsite",
			expectedMessage: "Client website must be a valid URL",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			harness := buildAPIHarness(testingT, true)
			payload := validProjectPayload()
			testCase.mutate(payload)

			recorder := harness.performJSON(testingT, http.MethodPost, projectsPath, payload, harness.staffToken)
			require.Equal(testingT, http.StatusBadRequest, recorder.Code, recorder.Body.String())
			require.Equal(testingT, testCase.expectedMessage, fieldMessages(decodeEnvelope(testingT, recorder, nil))[testCase.expectedField])
		})
	}
}

func TestCreateProjectRejectsNonNumericFormNumbers(testingT *testing.T) {
	fields := map[string]string{
		"title":       testProjectTitle,
		"description": testProjectDescription,
		"category":    model.ProjectCategoryHealthcare,
		"location":    testProjectLocation,
		"status":      model.ProjectStatusPlanning,
		"budget":      "lots",
		"size":        "huge",
	}

	testCases := []struct {
		name    string
		perform func(testingT *testing.T, harness apiHarness) *httptest.ResponseRecorder
	}{
		{
			name: "urlencoded",
			perform: func(testingT *testing.T, harness apiHarness) *httptest.ResponseRecorder {
				values := url.Values{}
				for key, value := range fields {
					values.Set(key, value)
				}
				return harness.performForm(http.MethodPost, projectsPath, values, harness.staffToken)
			},
		},
		{
			name: "multipart",
			perform: func(testingT *testing.T, harness apiHarness) *httptest.ResponseRecorder {
				return harness.performMultipart(testingT, http.MethodPost, projectsPath, fields, nil, harness.staffToken)
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			harness := buildAPIHarness(testingT, true)
			recorder := testCase.perform(testingT, harness)
			require.Equal(testingT, http.StatusBadRequest, recorder.Code, recorder.Body.String())
			require.NotEmpty(testingT, recorder.Body.Bytes())

			envelope := decodeEnvelope(testingT, recorder, nil)
			require.Equal(testingT, statusEnvelopeFail, envelope.Status)
			require.NotEmpty(testingT, envelope.Message)
			require.Equal(testingT, "Budget must be a number", fieldMessages(envelope)["budget"])
			require.Equal(testingT, "Size must be a number", fieldMessages(envelope)["size"])
			for _, fieldError := range envelope.Errors {
				switch fieldError.Field {
				case "budget":
					require.Equal(testingT, "lots", fieldError.Value)
				case "size":
					require.Equal(testingT, "huge", fieldError.Value)
				}
			}
			require.Empty(testingT, storedBlobNames(testingT, harness))
		})
	}
}

func TestGetProjectCountsViews(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)
	project := createTestProject(testingT, harness, validProjectPayload(), harness.staffToken)

	var data struct {
		Project projectPayload `json:"project"`
	}
	for expectedViews := int64(1); expectedViews <= 2; expectedViews++ {
		recorder := harness.performJSON(testingT, http.MethodGet, projectsPath+"/"+project.ID, nil, "")
		require.Equal(testingT, http.StatusOK, recorder.Code, recorder.Body.String())
		decodeEnvelope(testingT, recorder, &data)
		require.Equal(testingT, expectedViews, data.Project.Views)
	}

	missing := harness.performJSON(testingT, http.MethodGet, projectsPath+"/missing", nil, "")
	require.Equal(testingT, http.StatusNotFound, missing.Code)
	require.Equal(testingT, "Project not found.", decodeEnvelope(testingT, missing, nil).Message)
}

func TestUpdateProjectChangesOnlyProvidedFields(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)
	project := createTestProject(testingT, harness, validProjectPayload(), harness.staffToken)

	recorder := harness.performJSON(testingT, http.MethodPut, projectsPath+"/"+project.ID, map[string]any{
		"status": model.ProjectStatusCompleted,
		"tags":   []string{"hospital"},
	}, harness.staffToken)
	require.Equal(testingT, http.StatusOK, recorder.Code, recorder.Body.String())

	var data struct {
		Project projectPayload `json:"project"`
	}
	envelope := decodeEnvelope(testingT, recorder, &data)
	require.Equal(testingT, "Project updated successfully.", envelope.Message)
	require.Equal(testingT, testProjectTitle, data.Project.Title)
	require.Equal(testingT, model.ProjectStatusCompleted, data.Project.Status)
	require.Equal(testingT, []string{"hospital"}, data.Project.Tags)
	require.Equal(testingT, "Gauteng Health", data.Project.Client.Name)
	require.NotEmpty(testingT, data.Project.UpdatedBy)

	missing := harness.performJSON(testingT, http.MethodPut, projectsPath+"/missing", map[string]any{"status": model.ProjectStatusCompleted}, harness.staffToken)
	require.Equal(testingT, http.StatusNotFound, missing.Code)
	require.Equal(testingT, "Project not found.", decodeEnvelope(testingT, missing, nil).Message)
}

func TestUpdateProjectKeepsClientFieldsNotSent(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)
	payload := validProjectPayload()
	payload["clientLogo"] = "/uploads/gauteng-health.png"
	project := createTestProject(testingT, harness, payload, harness.staffToken)

	recorder := harness.performJSON(testingT, http.MethodPut, projectsPath+"/"+project.ID, map[string]any{
		"clientWebsite": "https://health.gauteng.gov.za",
	}, harness.staffToken)
	require.Equal(testingT, http.StatusOK, recorder.Code, recorder.Body.String())

	var data struct {
		Project projectPayload `json:"project"`
	}
	decodeEnvelope(testingT, recorder, &data)
	require.Equal(testingT, "Gauteng Health", data.Project.Client.Name)
	require.Equal(testingT, "https://health.gauteng.gov.za", data.Project.Client.Website)
	require.Equal(testingT, "/uploads/gauteng-health.png", data.Project.Client.Logo)
}

func TestProjectStatusFeaturedAndListings(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)
	completed := validProjectPayload()
	completed["status"] = model.ProjectStatusCompleted
	completed["completionDate"] = "2025-06-30"
	featuredProject := createTestProject(testingT, harness, completed, harness.staffToken)

	residential := validProjectPayload()
	residential["title"] = "Waterfall Estate Homes"
	residential["category"] = model.ProjectCategoryResidential
	otherProject := createTestProject(testingT, harness, residential, harness.staffToken)

	toggled := harness.performJSON(testingT, http.MethodPatch, projectsPath+"/"+featuredProject.ID+"/featured", nil, harness.staffToken)
	require.Equal(testingT, http.StatusOK, toggled.Code, toggled.Body.String())

	statusChanged := harness.performJSON(testingT, http.MethodPatch, projectsPath+"/"+otherProject.ID+"/status", map[string]any{"status": model.ProjectStatusOnHold}, harness.staffToken)
	require.Equal(testingT, http.StatusOK, statusChanged.Code, statusChanged.Body.String())
	require.Equal(testingT, "Project status updated successfully.", decodeEnvelope(testingT, statusChanged, nil).Message)

	var featured struct {
		Projects []projectPayload `json:"projects"`
	}
	featuredRecorder := harness.performJSON(testingT, http.MethodGet, projectsPath+"/featured", nil, "")
	require.Equal(testingT, http.StatusOK, featuredRecorder.Code)
	decodeEnvelope(testingT, featuredRecorder, &featured)
	require.Len(testingT, featured.Projects, 1)
	require.Equal(testingT, featuredProject.ID, featured.Projects[0].ID)

	var listed struct {
		Projects   []projectPayload `json:"projects"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	listRecorder := harness.performJSON(testingT, http.MethodGet, projectsPath+"?status=on-hold&sort=title", nil, "")
	require.Equal(testingT, http.StatusOK, listRecorder.Code, listRecorder.Body.String())
	decodeEnvelope(testingT, listRecorder, &listed)
	require.Len(testingT, listed.Projects, 1)
	require.Equal(testingT, otherProject.ID, listed.Projects[0].ID)
	require.Equal(testingT, int64(1), listed.Pagination.Total)

	featuredOnly := harness.performJSON(testingT, http.MethodGet, projectsPath+"?featured=true", nil, "")
	require.Equal(testingT, http.StatusOK, featuredOnly.Code)
	decodeEnvelope(testingT, featuredOnly, &listed)
	require.Len(testingT, listed.Projects, 1)

	var categories struct {
		Categories []struct {
			Category string `json:"category"`
			Count    int64  `json:"count"`
		} `json:"categories"`
	}
	categoriesRecorder := harness.performJSON(testingT, http.MethodGet, projectsPath+"/categories", nil, "")
	require.Equal(testingT, http.StatusOK, categoriesRecorder.Code)
	decodeEnvelope(testingT, categoriesRecorder, &categories)
	require.Len(testingT, categories.Categories, 2)
	require.Equal(testingT, model.ProjectCategoryHealthcare, categories.Categories[0].Category)
	require.Equal(testingT, int64(1), categories.Categories[0].Count)
	require.Equal(testingT, int64(0), categories.Categories[1].Count)

	anonymousStats := harness.performJSON(testingT, http.MethodGet, projectsPath+"/stats", nil, "")
	require.Equal(testingT, http.StatusUnauthorized, anonymousStats.Code)

	var stats struct {
		Overall struct {
			TotalProjects    int64 `json:"totalProjects"`
			FeaturedProjects int64 `json:"featuredProjects"`
		} `json:"overall"`
	}
	statsRecorder := harness.performJSON(testingT, http.MethodGet, projectsPath+"/stats", nil, harness.viewerToken)
	require.Equal(testingT, http.StatusOK, statsRecorder.Code, statsRecorder.Body.String())
	decodeEnvelope(testingT, statsRecorder, &stats)
	require.Equal(testingT, int64(2), stats.Overall.TotalProjects)
	require.Equal(testingT, int64(1), stats.Overall.FeaturedProjects)
}

func TestListProjectsRejectsInvalidQuery(testingT *testing.T) {
	testCases := []struct {
		name            string
		query           string
		expectedMessage string
	}{
		{name: "unknown sort", query: "?sort=budget", expectedMessage: "Invalid sort field. Allowed fields: createdAt, updatedAt, title, completionDate, startDate, views, category, status"},
		{name: "featured flag", query: "?featured=maybe", expectedMessage: "Featured must be true or false"},
		{name: "unknown category", query: "?category=mansion", expectedMessage: "Invalid category"},
		{name: "unknown filter", query: "?owner=me", expectedMessage: "Invalid filter parameters: owner. Allowed filters: category, status, featured"},
		{name: "negative page", query: "?page=-1", expectedMessage: "Page must be a positive integer"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			harness := buildAPIHarness(testingT, true)
			recorder := harness.performJSON(testingT, http.MethodGet, projectsPath+testCase.query, nil, "")
			require.Equal(testingT, http.StatusBadRequest, recorder.Code, recorder.Body.String())
			require.Equal(testingT, testCase.expectedMessage, decodeEnvelope(testingT, recorder, nil).Message)
		})
	}
}

func TestProjectImageRoutes(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)
	project := createTestProject(testingT, harness, validProjectPayload(), harness.staffToken)
	imagesPath := projectsPath + "/" + project.ID + "/images"

	empty := harness.performJSON(testingT, http.MethodPost, imagesPath, nil, harness.staffToken)
	require.Equal(testingT, http.StatusBadRequest, empty.Code)
	require.Equal(testingT, "No images uploaded.", decodeEnvelope(testingT, empty, nil).Message)

	added := harness.performMultipart(testingT, http.MethodPost, imagesPath, nil, []formFile{
		{field: "images", filename: "one.png", contentType: "image/png", content: pngContent},
		{field: "images", filename: "two.png", contentType: "image/png", content: pngContent},
	}, harness.staffToken)
	require.Equal(testingT, http.StatusOK, added.Code, added.Body.String())
	var batch struct {
		Images      []model.ProjectImage `json:"images"`
		TotalImages int                  `json:"totalImages"`
	}
	require.Equal(testingT, "Images added successfully.", decodeEnvelope(testingT, added, &batch).Message)
	require.Len(testingT, batch.Images, 2)
	require.Equal(testingT, 2, batch.TotalImages)
	require.True(testingT, batch.Images[0].IsPrimary)

	primary := harness.performJSON(testingT, http.MethodPatch, imagesPath+"/"+batch.Images[1].ID+"/primary", nil, harness.staffToken)
	require.Equal(testingT, http.StatusOK, primary.Code, primary.Body.String())
	var primaryData struct {
		Project projectPayload `json:"project"`
	}
	decodeEnvelope(testingT, primary, &primaryData)
	require.False(testingT, primaryData.Project.Images[0].IsPrimary)
	require.True(testingT, primaryData.Project.Images[1].IsPrimary)

	unknownImage := harness.performJSON(testingT, http.MethodDelete, imagesPath+"/missing", nil, harness.staffToken)
	require.Equal(testingT, http.StatusNotFound, unknownImage.Code)
	require.Equal(testingT, "Image not found.", decodeEnvelope(testingT, unknownImage, nil).Message)

	removed := harness.performJSON(testingT, http.MethodDelete, imagesPath+"/"+batch.Images[0].ID, nil, harness.staffToken)
	require.Equal(testingT, http.StatusOK, removed.Code, removed.Body.String())
	var removedData struct {
		TotalImages int `json:"totalImages"`
	}
	decodeEnvelope(testingT, removed, &removedData)
	require.Equal(testingT, 1, removedData.TotalImages)
	require.Equal(testingT, []string{batch.Images[1].Filename}, storedBlobNames(testingT, harness))

	tooMany := make([]formFile, 0, 6)
	for index := 0; index < 6; index++ {
		tooMany = append(tooMany, formFile{field: "images", filename: "batch.png", contentType: "image/png", content: pngContent})
	}
	rejected := harness.performMultipart(testingT, http.MethodPost, imagesPath, nil, tooMany, harness.staffToken)
	require.Equal(testingT, http.StatusBadRequest, rejected.Code)
	require.Equal(testingT, "Too many files. Maximum is 5 files.", decodeEnvelope(testingT, rejected, nil).Message)
}

func TestDeleteProjectRemovesImages(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)
	fields := map[string]string{
		"title":       testProjectTitle,
		"description": testProjectDescription,
		"category":    model.ProjectCategoryHealthcare,
		"location":    testProjectLocation,
		"status":      model.ProjectStatusPlanning,
	}
	created := harness.performMultipart(testingT, http.MethodPost, projectsPath, fields, []formFile{
		{field: "images", filename: "site.png", contentType: "image/png", content: pngContent},
	}, harness.staffToken)
	require.Equal(testingT, http.StatusCreated, created.Code, created.Body.String())
	var data struct {
		Project projectPayload `json:"project"`
	}
	decodeEnvelope(testingT, created, &data)
	require.Len(testingT, storedBlobNames(testingT, harness), 1)

	deleted := harness.performJSON(testingT, http.MethodDelete, projectsPath+"/"+data.Project.ID, nil, harness.staffToken)
	require.Equal(testingT, http.StatusOK, deleted.Code, deleted.Body.String())
	require.Equal(testingT, "Project deleted successfully.", decodeEnvelope(testingT, deleted, nil).Message)
	require.Empty(testingT, storedBlobNames(testingT, harness))

	again := harness.performJSON(testingT, http.MethodDelete, projectsPath+"/"+data.Project.ID, nil, harness.staffToken)
	require.Equal(testingT, http.StatusNotFound, again.Code)
}
