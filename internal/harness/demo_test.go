package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioSuite runs every scenario under testdata/scenarios. These
// double as the reference examples for the scenario format.
func TestScenarioSuite(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunSuite(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)

	suite := RunSuite(paths)
	assert.Equal(t, len(paths), suite.Total)
	assert.Equal(t, suite.Total, suite.Passed)
	assert.Zero(t, suite.Failed)
	assert.Empty(t, suite.Failures)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	suite := RunSuite([]string{"testdata/scenarios/does_not_exist.yaml"})
	assert.Equal(t, 1, suite.Total)
	assert.Equal(t, 1, suite.Failed)
	require.Len(t, suite.Failures, 1)
	assert.Equal(t, "does_not_exist", suite.Failures[0].Name)
	assert.Contains(t, suite.Failures[0].Error, "failed to load scenario")
}

// Swap scenarios exercise the full propose/counter/accept lifecycle; their
// traces must be identical run to run so golden files stay stable.
func TestSwapScenarios_Deterministic(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios", "*counter*")
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		first, err := Run(scenario)
		require.NoError(t, err)
		second, err := Run(scenario)
		require.NoError(t, err)
		assert.Equal(t, first.Trace, second.Trace, path)
	}
}
