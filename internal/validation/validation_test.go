package validation_test

import (
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zimbuild/sitebackend/internal/storage"
	"github.com/zimbuild/sitebackend/internal/validation"
)

type testApplication struct {
	FullName    string  `json:"fullName" validate:"min=2,max=100" message:"Full name must be between 2 and 100 characters"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       string  `json:"phone" validate:"phone"`
	Mobile      *string `json:"mobile" validate:"omitempty,phone"`
	Experience  string  `json:"experience" validate:"experience"`
	StartDate   *string `json:"startDate" validate:"omitempty,iso8601"`
	CoverLetter *string `json:"coverLetter" validate:"omitempty,max=20"`
	Tags        []string
	Client      testClient `json:"client"`
}

type testClient struct {
	Name string `json:"name" validate:"max=5"`
}

func stringPointer(value string) *string {
	return &value
}

func TestStructReportsEveryViolatedField(t *testing.T) {
	validator := validation.New()
	payload := testApplication{
		FullName:   "A",
		Email:      "not-an-email",
		Phone:      "12",
		Experience: "20+",
		StartDate:  stringPointer("yesterday"),
		Client:     testClient{Name: "Too long name"},
	}

	err := validator.Struct(&payload)
	require.Error(t, err)

	var fieldErrors validation.Errors
	require.True(t, errors.As(err, &fieldErrors))

	byField := make(map[string]validation.FieldError, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		byField[fieldError.Field] = fieldError
	}
	require.Len(t, byField, 6)
	require.Equal(t, "Full name must be between 2 and 100 characters", byField["fullName"].Message)
	require.Equal(t, "A", byField["fullName"].Value)
	require.Equal(t, "Please provide a valid email", byField["email"].Message)
	require.Equal(t, "Please provide a valid phone number", byField["phone"].Message)
	require.Equal(t, "Please select valid experience range", byField["experience"].Message)
	require.Equal(t, "yesterday", byField["startDate"].Value)
	require.Contains(t, byField, "client.name")
}

type testMeasurement struct {
	Budget *json.Number `json:"budget" validate:"omitempty,numeric" message:"Budget must be a number"`
}

func TestStructReportsNamedStringValuesAsPlainStrings(t *testing.T) {
	validator := validation.New()
	budget := json.Number("lots")

	err := validator.Struct(&testMeasurement{Budget: &budget})
	var fieldErrors validation.Errors
	require.True(t, errors.As(err, &fieldErrors))
	require.Len(t, fieldErrors, 1)
	require.IsType(t, "", fieldErrors[0].Value)
	require.Equal(t, "lots", fieldErrors[0].Value)

	encoded, encodeErr := json.Marshal(fieldErrors)
	require.NoError(t, encodeErr)
	require.JSONEq(t, `[{"field":"budget","message":"Budget must be a number","value":"lots"}]`, string(encoded))
}

func TestStructAcceptsValidPayload(t *testing.T) {
	validator := validation.New()
	payload := testApplication{
		FullName:    "Sipho Dlamini",
		Email:       "sipho@example.com",
		Phone:       "+27 (82) 123-4567",
		Mobile:      stringPointer("082 123 4567"),
		Experience:  "10+",
		StartDate:   stringPointer("2024-02-01"),
		CoverLetter: stringPointer("Short letter"),
		Client:      testClient{Name: "ACME"},
	}
	require.NoError(t, validator.Struct(&payload))
}

func TestSanitizeTrimsAndClearsEmptyOptionals(t *testing.T) {
	payload := testApplication{
		FullName:    "  Sipho  ",
		Mobile:      stringPointer("   "),
		CoverLetter: stringPointer("  letter "),
		Tags:        []string{" a ", "b "},
		Client:      testClient{Name: " ACME "},
	}
	validation.Sanitize(&payload)

	require.Equal(t, "Sipho", payload.FullName)
	require.Nil(t, payload.Mobile)
	require.Equal(t, "letter", *payload.CoverLetter)
	require.Equal(t, []string{"a", "b"}, payload.Tags)
	require.Equal(t, "ACME", payload.Client.Name)

	validation.Sanitize(payload)
	validation.Sanitize(nil)
}

func TestParsePage(t *testing.T) {
	testCases := []struct {
		name          string
		query         url.Values
		expected      storage.Page
		expectedError string
	}{
		{name: "defaults", query: url.Values{}, expected: storage.Page{Number: 1, Limit: 9}},
		{name: "explicit", query: url.Values{"page": {"3"}, "limit": {"2"}}, expected: storage.Page{Number: 3, Limit: 2}},
		{name: "zero page", query: url.Values{"page": {"0"}}, expectedError: "Page must be a positive integer"},
		{name: "text page", query: url.Values{"page": {"two"}}, expectedError: "Page must be a positive integer"},
		{name: "limit too large", query: url.Values{"limit": {"101"}}, expectedError: "Limit must be between 1 and 100"},
		{name: "limit zero", query: url.Values{"limit": {"0"}}, expectedError: "Limit must be between 1 and 100"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			page, err := validation.ParsePage(testCase.query, 9)
			if testCase.expectedError != "" {
				require.ErrorIs(testingT, err, validation.ErrInvalidQuery)
				require.EqualError(testingT, err, testCase.expectedError)
				return
			}
			require.NoError(testingT, err)
			require.Equal(testingT, testCase.expected, page)
		})
	}
}

func TestCheckSort(t *testing.T) {
	allowed := []string{"createdAt", "title"}

	sort, err := validation.CheckSort("", allowed, "-createdAt")
	require.NoError(t, err)
	require.Equal(t, storage.Sort{Field: "createdAt", Descending: true}, sort)

	sort, err = validation.CheckSort("title", allowed, "-createdAt")
	require.NoError(t, err)
	require.Equal(t, storage.Sort{Field: "title"}, sort)

	_, err = validation.CheckSort("-budget", allowed, "-createdAt")
	require.ErrorIs(t, err, validation.ErrInvalidQuery)
	require.EqualError(t, err, "Invalid sort field. Allowed fields: createdAt, title")
}

func TestCheckFilters(t *testing.T) {
	allowed := []string{"category", "status"}

	require.NoError(t, validation.CheckFilters(url.Values{"category": {"residential"}, "page": {"1"}, "token": {"abc"}}, allowed))

	err := validation.CheckFilters(url.Values{"owner": {"x"}, "color": {"y"}, "status": {"completed"}}, allowed)
	require.ErrorIs(t, err, validation.ErrInvalidQuery)
	require.EqualError(t, err, "Invalid filter parameters: color, owner. Allowed filters: category, status")
}
