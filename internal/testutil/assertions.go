package testutil

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

var summaryRe = regexp.MustCompile(`^(\S+) = (\S+)\nrel error = (\S+)\n$`)

// ReadSummary parses the two-line summary written by the root rank.
func ReadSummary(t *testing.T, result *HarnessResult) (label string, value, relErr float64) {
	t.Helper()

	raw, err := os.ReadFile(result.SummaryPath())
	require.NoError(t, err, "summary file was not written")

	m := summaryRe.FindStringSubmatch(string(raw))
	require.NotNil(t, m, "malformed summary: %q", raw)

	value, err = strconv.ParseFloat(m[2], 64)
	require.NoError(t, err)
	relErr, err = strconv.ParseFloat(m[3], 64)
	require.NoError(t, err)
	return m[1], value, relErr
}

// AssertReported checks that the value line was printed exactly once.
func AssertReported(t *testing.T, result *HarnessResult, label string) {
	t.Helper()
	re := regexp.MustCompile(fmt.Sprintf(`%s = \S+    rel error = \S+`, regexp.QuoteMeta(label)))
	require.Len(t, re.FindAllString(result.Output, -1), 1, "output:\n%s", result.Output)
}
