package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	fcsched "github.com/bgp59/fcsched/internal"
	fcsched_testutils "github.com/bgp59/fcsched/testutils"
)

// S7 - Demo daemon smoke test: driving the daemon through N Execute() passes
// against a fake clock produces a non-empty GetInfo snapshot for every
// enabled demo task, and the introspection endpoint's load_percent is in
// [0, 100].
func TestDaemonSmoke(t *testing.T) {
	clock := fcsched_testutils.NewFakeClock(0)
	d, err := buildDaemon("", clock)
	require.NoError(t, err)
	require.NotEmpty(t, d.tasks)

	for i := 0; i < 5_000; i++ {
		clock.Advance(200)
		d.sched.Execute()
	}

	for i, task := range d.tasks {
		info, ok := d.sched.GetInfo(fcsched.TaskId(i))
		require.True(t, ok, "GetInfo(%s)", task.Name)
		require.Equal(t, task.Name, info.Name)
	}

	req := httptest.NewRequest("GET", "/debug/scheduler", nil)
	rec := httptest.NewRecorder()
	d.handler.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	var resp schedulerInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.LessOrEqual(t, resp.LoadPercent, uint16(100))
	require.NotEmpty(t, resp.Tasks)
}

func TestDaemonHealthz(t *testing.T) {
	clock := fcsched_testutils.NewFakeClock(0)
	d, err := buildDaemon("", clock)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	d.handler.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
}
