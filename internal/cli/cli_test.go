package cli

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vk/meshflow/internal/app"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		args           []string
		expectExit     bool
		expectErr      string
		expectedConfig *app.Config
		checkOutput    func(t *testing.T, output string)
	}{
		{
			name: "Happy Path with all flags",
			args: []string{
				"-input", "/test/input.hcl",
				"--manifests=/test/packages",
				"--log-level=debug",
				"--log-format=json",
				"--workers=8",
				"--healthcheck-port=8080",
			},
			expectedConfig: &app.Config{
				InputPath:       "/test/input.hcl",
				ManifestsPath:   "/test/packages",
				LogLevel:        "debug",
				LogFormat:       "json",
				WorkerCount:     8,
				HealthcheckPort: 8080,
			},
		},
		{
			name: "Shorthand flag and defaults",
			args: []string{"-i", "/short/path"},
			expectedConfig: &app.Config{
				InputPath:     "/short/path",
				ManifestsPath: "packages",
				LogLevel:      "info",
				LogFormat:     "text",
			},
		},
		{
			name: "Positional argument for path",
			args: []string{"/positional/path"},
			expectedConfig: &app.Config{
				InputPath:     "/positional/path",
				ManifestsPath: "packages",
				LogLevel:      "info",
				LogFormat:     "text",
			},
		},
		{
			name:       "Help flag triggers clean exit",
			args:       []string{"-h"},
			expectExit: true,
			checkOutput: func(t *testing.T, output string) {
				require.Contains(t, output, "Usage:")
				require.Contains(t, output, "MESHFLOW_REDUCER")
			},
		},
		{
			name:       "No path triggers clean exit with usage",
			args:       []string{},
			expectExit: true,
			checkOutput: func(t *testing.T, output string) {
				require.Contains(t, output, "Usage:")
			},
		},
		{
			name:      "Invalid log level returns an error",
			args:      []string{"--log-level=foo", "/path"},
			expectErr: "invalid log-level",
		},
		{
			name:      "Invalid log format returns an error",
			args:      []string{"--log-format=yaml", "/path"},
			expectErr: "invalid log-format",
		},
		{
			name:      "Negative workers returns an error",
			args:      []string{"--workers=-1", "/path"},
			expectErr: "invalid workers",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := &bytes.Buffer{}
			appConfig, shouldExit, err := Parse(tc.args, out)

			if tc.expectErr != "" {
				require.Error(t, err)
				exitErr, ok := err.(*ExitError)
				require.True(t, ok, "Expected error to be of type ExitError")
				require.Equal(t, 2, exitErr.Code)
				require.Contains(t, exitErr.Message, tc.expectErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expectExit, shouldExit)

			if tc.expectedConfig != nil {
				if diff := cmp.Diff(tc.expectedConfig, appConfig); diff != "" {
					t.Errorf("Config mismatch (-want +got):\n%s", diff)
				}
			}
			if tc.checkOutput != nil {
				tc.checkOutput(t, out.String())
			}
		})
	}
}
