package main

import (
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fcsched "github.com/bgp59/fcsched/internal"
	fcsched_testutils "github.com/bgp59/fcsched/testutils"
)

// taskOverrideFixture is the on-disk shape of one entry in task_overrides.json;
// DesiredPeriodMicros is plain JSON-decodable (unlike time.Duration, which
// has no string/JSON codec of its own).
type taskOverrideFixture struct {
	Priority            string `json:"priority"`
	DesiredPeriodMicros uint32 `json:"desired_period_micros"`
}

var taskOverrideTestCasesFile = path.Join("testdata", "task_overrides.json")

// TestNewDemoTaskTableOverrides loads a fixture of per-task config overrides
// and checks that newDemoTaskTable applies them, leaving every other task at
// its built-in default.
func TestNewDemoTaskTableOverrides(t *testing.T) {
	fixtures := make(map[string]*taskOverrideFixture)
	err := fcsched_testutils.LoadJsonFile(taskOverrideTestCasesFile, &fixtures)
	require.NoError(t, err)

	defaults, err := newDemoTaskTable(DefaultTasksConfig())
	require.NoError(t, err)
	defaultByName := make(map[string]*fcsched.Task, len(defaults))
	for _, task := range defaults {
		defaultByName[task.Name] = task
	}

	cfg := DefaultTasksConfig()
	for name, fx := range fixtures {
		override := &TaskConfig{Priority: fx.Priority}
		if fx.DesiredPeriodMicros > 0 {
			override.DesiredPeriod = time.Duration(fx.DesiredPeriodMicros) * time.Microsecond
		}
		cfg[name] = override
	}

	tasks, err := newDemoTaskTable(cfg)
	require.NoError(t, err)
	require.Len(t, tasks, len(defaults))

	for _, task := range tasks {
		fx, overridden := fixtures[task.Name]
		if !overridden {
			want := defaultByName[task.Name]
			require.Equal(t, want.Priority, task.Priority, "task %q priority", task.Name)
			require.Equal(t, want.Period(), task.Period(), "task %q period", task.Name)
			continue
		}

		wantPriority, err := parsePriority(fx.Priority)
		require.NoError(t, err)
		require.Equal(t, wantPriority, task.Priority, "task %q priority", task.Name)

		if fx.DesiredPeriodMicros > 0 {
			require.Equal(t, fx.DesiredPeriodMicros, task.Period(), "task %q period", task.Name)
		} else {
			require.Equal(t, defaultByName[task.Name].Period(), task.Period(), "task %q period", task.Name)
		}
	}
}
