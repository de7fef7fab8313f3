package httpapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zimbuild/sitebackend/internal/auth"
	"github.com/zimbuild/sitebackend/internal/model"
)

const (
	loginPath = "/api/auth/login"
	mePath    = "/api/auth/me"
)

func TestLoginIssuesUsableToken(testingT *testing.T) {
	harness := buildAPIHarness(testingT, true)

	recorder := harness.performJSON(testingT, http.MethodPost, loginPath, map[string]any{
		"email":    "MANAGER@zimbuild.example",
		"password": testUserPassword,
	}, "")
	require.Equal(testingT, http.StatusOK, recorder.Code, recorder.Body.String())

	var session auth.Session
	envelope := decodeEnvelope(testingT, recorder, &session)
	require.Equal(testingT, "Login successful.", envelope.Message)
	require.NotEmpty(testingT, session.Token)
	require.Equal(testingT, testStaffEmail, session.User.Email)
	require.Equal(testingT, model.RoleManager, session.User.Role)

	me := harness.performJSON(testingT, http.MethodGet, mePath, nil, session.Token)
	require.Equal(testingT, http.StatusOK, me.Code, me.Body.String())
	var data struct {
		User auth.Identity `json:"user"`
	}
	decodeEnvelope(testingT, me, &data)
	require.Equal(testingT, session.User, data.User)

	user, lookupErr := harness.store.GetUserByEmail(context.Background(), testStaffEmail)
	require.NoError(testingT, lookupErr)
	require.NotNil(testingT, user.LastLogin)
}

func TestLoginRejections(testingT *testing.T) {
	testCases := []struct {
		name            string
		payload         map[string]any
		expectedStatus  int
		expectedMessage string
		expectedField   string
	}{
		{
			name:            "wrong password",
			payload:         map[string]any{"email": testStaffEmail, "password": "wrong-password"},
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Invalid email or password.",
		},
		{
			name:            "unknown email",
			payload:         map[string]any{"email": "ghost@zimbuild.example", "password": testUserPassword},
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Invalid email or password.",
		},
		{
			name:            "missing password",
			payload:         map[string]any{"email": testStaffEmail},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Password is required",
			expectedField:   "password",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			harness := buildAPIHarness(testingT, true)
			recorder := harness.performJSON(testingT, http.MethodPost, loginPath, testCase.payload, "")
			require.Equal(testingT, testCase.expectedStatus, recorder.Code, recorder.Body.String())
			envelope := decodeEnvelope(testingT, recorder, nil)
			if testCase.expectedField == "" {
				require.Equal(testingT, testCase.expectedMessage, envelope.Message)
				return
			}
			require.Equal(testingT, testCase.expectedMessage, fieldMessages(envelope)[testCase.expectedField])
		})
	}
}

func TestMeWithoutIdentity(testingT *testing.T) {
	testCases := []struct {
		name    string
		enforce bool
	}{
		{name: "enforced", enforce: true},
		{name: "bypass", enforce: false},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			harness := buildAPIHarness(testingT, testCase.enforce)
			recorder := harness.performJSON(testingT, http.MethodGet, mePath, nil, "")
			require.Equal(testingT, http.StatusUnauthorized, recorder.Code)
			require.Equal(testingT, statusEnvelopeFail, decodeEnvelope(testingT, recorder, nil).Status)
		})
	}
}
