package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLifetime(testingT *testing.T) {
	testCases := []struct {
		name             string
		raw              string
		expectedDuration time.Duration
		expectError      bool
	}{
		{name: "days", raw: "7d", expectedDuration: 7 * 24 * time.Hour},
		{name: "go duration", raw: "12h30m", expectedDuration: 12*time.Hour + 30*time.Minute},
		{name: "blank", raw: "  ", expectedDuration: 0},
		{name: "zero days", raw: "0d", expectError: true},
		{name: "fractional days", raw: "1.5d", expectError: true},
		{name: "words", raw: "forever", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			duration, parseErr := parseLifetime(testCase.raw)
			if testCase.expectError {
				require.Error(testingT, parseErr)
				return
			}
			require.NoError(testingT, parseErr)
			require.Equal(testingT, testCase.expectedDuration, duration)
		})
	}
}

func TestSplitList(testingT *testing.T) {
	require.Equal(testingT, []string{"https://a.example", "http://localhost:3000"}, splitList(" https://a.example, ,http://localhost:3000 "))
	require.Empty(testingT, splitList(""))
}

func TestEnsureRequiredConfiguration(testingT *testing.T) {
	bypassMemory := ServerConfig{AuthEnforce: false}
	bypassMemory.Storage.Mode = "memory"
	require.NoError(testingT, ensureRequiredConfiguration(bypassMemory))

	enforcedDatabase := ServerConfig{AuthEnforce: true}
	enforcedDatabase.Storage.Mode = "database"
	err := ensureRequiredConfiguration(enforcedDatabase)
	require.EqualError(testingT, err, "missing required configuration: jwt-secret, db-dsn")
}

func TestProductionEnvironment(testingT *testing.T) {
	require.True(testingT, ServerConfig{Environment: "production"}.Production())
	require.False(testingT, ServerConfig{Environment: "development"}.Production())
}

func TestMainPrintsHelpForEveryCommand(testingT *testing.T) {
	originalArguments := os.Args
	testingT.Cleanup(func() {
		os.Args = originalArguments
	})

	for _, arguments := range [][]string{
		{commandUseName, "--help"},
		{commandUseName, createUserCommandUseName, "--help"},
	} {
		os.Args = arguments
		main()
	}
}
