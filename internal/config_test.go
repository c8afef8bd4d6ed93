package fcsched_internal

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/huandu/go-clone"
)

type LoadConfigTestCase struct {
	Name         string
	Description  string
	TasksConfig  any
	Data         string
	WantConfig   *Config
	WantTasksCfg any
	WantErr      error
}

type DemoTaskConfigTest struct {
	Id            string        `yaml:"id"`
	DesiredPeriod time.Duration `yaml:"desired_period"`
	Priority      string        `yaml:"priority"`
}

type TasksConfigTest struct {
	Accel *DemoTaskConfigTest `yaml:"accel"`
	Rx    *DemoTaskConfigTest `yaml:"rx"`
}

func defaultTasksConfigTest() *TasksConfigTest {
	return &TasksConfigTest{
		Accel: &DemoTaskConfigTest{Id: "accel"},
		Rx:    &DemoTaskConfigTest{Id: "rx"},
	}
}

func testLoadConfig(t *testing.T, tc *LoadConfigTestCase) {
	if tc.Description != "" {
		t.Log(tc.Description)
	}
	tasksCfg := clone.Clone(tc.TasksConfig)
	gotConfig, err := LoadConfig("", tasksCfg, []byte(strings.ReplaceAll(tc.Data, "\t", "  ")))
	if tc.WantErr == nil && err != nil {
		t.Fatal(err)
	}
	if tc.WantErr != nil && err == nil {
		t.Fatalf("err: want %v, got %v", tc.WantErr, err)
	}

	if diff := cmp.Diff(tc.WantConfig, gotConfig); diff != "" {
		t.Fatalf("Config mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(tc.WantTasksCfg, tasksCfg); diff != "" {
		t.Fatalf("TasksConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFcSchedConfig(t *testing.T) {
	tasksData := `
		tasks:
			accel:
				desired_period: 30ms
	`
	ignoredData := `
		ignore:
			- name: name1
	`

	name1 := "instance"
	data1 := `
		fcsched_config:
			instance: pidloop1
	`
	cfg1 := DefaultConfig()
	cfg1.Instance = "pidloop1"

	name2 := "scheduler_config"
	data2 := `
		fcsched_config:
			scheduler_config:
				guard_max_micros: 500
	`
	cfg2 := DefaultConfig()
	cfg2.SchedulerConfig.GuardMaxMicros = 500

	name3 := "debug_config"
	data3 := `
		fcsched_config:
			debug_config:
				enabled: true
				ring_buffer_size: 8KiB
	`
	cfg3 := DefaultConfig()
	cfg3.DebugConfig.Enabled = true
	cfg3.DebugConfig.RingBufferSize = "8KiB"

	name4 := "runner_config"
	data4 := `
		fcsched_config:
			runner_config:
				shutdown_max_wait: 9s
	`
	cfg4 := DefaultConfig()
	cfg4.RunnerConfig.ShutdownMaxWait = 9 * time.Second

	name5 := "log_config"
	data5 := `
		fcsched_config:
			log_config:
				level: debug
	`
	cfg5 := DefaultConfig()
	cfg5.LoggerConfig.Level = "debug"

	for _, tc := range []*LoadConfigTestCase{
		{
			Name:       "default",
			WantConfig: DefaultConfig(),
		},
		{
			Name: "fcsched_config_empty",
			Data: `
				fcsched_config:
			`,
			WantConfig: DefaultConfig(),
		},
		{Name: name1, Data: data1, WantConfig: cfg1},
		{Name: name2, Data: data2, WantConfig: cfg2},
		{Name: name3, Data: data3, WantConfig: cfg3},
		{Name: name4, Data: data4, WantConfig: cfg4},
		{Name: name5, Data: data5, WantConfig: cfg5},
		{
			Name:       name1 + "_plus_tasks",
			Data:       data1 + tasksData,
			WantConfig: cfg1,
		},
		{
			Name:       name1 + "_plus_ignored",
			Data:       data1 + ignoredData,
			WantConfig: cfg1,
		},
	} {
		t.Run(
			tc.Name,
			func(t *testing.T) { testLoadConfig(t, tc) },
		)
	}
}

func TestLoadTasksConfig(t *testing.T) {
	data := `
		tasks:
			accel:
				#id: accel
				desired_period: 10ms
				priority: medium
			rx:
				id: radio_rx
				desired_period: 20ms
				priority: high
	`
	wantTasksCfg := defaultTasksConfigTest()
	wantTasksCfg.Accel.Id = "accel"
	wantTasksCfg.Accel.DesiredPeriod = 10 * time.Millisecond
	wantTasksCfg.Accel.Priority = "medium"
	wantTasksCfg.Rx.Id = "radio_rx"
	wantTasksCfg.Rx.DesiredPeriod = 20 * time.Millisecond
	wantTasksCfg.Rx.Priority = "high"

	tc := &LoadConfigTestCase{
		Name:         "tasks_config",
		Description:  "Test loading the demo task table configuration",
		TasksConfig:  defaultTasksConfigTest(),
		Data:         data,
		WantConfig:   DefaultConfig(),
		WantTasksCfg: wantTasksCfg,
		WantErr:      nil,
	}
	t.Run(tc.Name, func(t *testing.T) { testLoadConfig(t, tc) })
}
