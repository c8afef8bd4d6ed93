// Demo task table: a reference flight-controller task set built out of the
// engine's public Task/Scheduler types, standing in for the real
// sensor/actuator tasks that are out of scope for the core engine (§6 of the
// scheduling policy).

package main

import (
	"fmt"
	"time"

	fcsched "github.com/bgp59/fcsched/internal"
)

// TaskConfig overrides a single demo task's period and priority; zero values
// mean "use the built-in default".
type TaskConfig struct {
	DesiredPeriod time.Duration `yaml:"desired_period"`
	Priority      string        `yaml:"priority"`
}

// TasksConfig is the host-specific "tasks" section of the YAML config (see
// internal/config.go LoadConfig), keyed by demo task name.
type TasksConfig map[string]*TaskConfig

func DefaultTasksConfig() TasksConfig {
	return TasksConfig{}
}

const systemTaskPeriod = 500 * time.Millisecond

var priorityByName = map[string]fcsched.Priority{
	"idle":     fcsched.Idle,
	"low":      fcsched.Low,
	"medium":   fcsched.Medium,
	"high":     fcsched.High,
	"realtime": fcsched.Realtime,
}

func parsePriority(name string) (fcsched.Priority, error) {
	p, ok := priorityByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown priority %q", name)
	}
	return p, nil
}

// demoTaskSpec is the built-in default for one demo task, before any config
// override is applied.
type demoTaskSpec struct {
	name          string
	priority      fcsched.Priority
	desiredPeriod time.Duration
	run           func()
	ready         func(sinceLastRunMicros uint32) bool
}

// newDemoTaskTable builds the non-system half of the reference task set
// named in §4.7: the realtime attitude/PID loop, a handful of sensor
// stand-ins at varying priorities, one event-driven radio-receiver task, and
// an idle-priority telemetry task. Each Run is a no-op stand-in that merely
// simulates a bit of work; a real host replaces these with actual sensor
// drivers. The system maintenance task itself is wired in by the runner,
// since its Run needs the *Scheduler that does not exist until the full
// table (including this one) has been assembled.
func newDemoTaskTable(cfg TasksConfig) ([]*fcsched.Task, error) {
	rxReady := newToggleReady()

	specs := []*demoTaskSpec{
		{name: "gyro_pid", priority: fcsched.Realtime, desiredPeriod: 1 * time.Millisecond, run: noopWork(50)},
		{name: "accel", priority: fcsched.Medium, desiredPeriod: 10 * time.Millisecond, run: noopWork(200)},
		{name: "gyro", priority: fcsched.Medium, desiredPeriod: 5 * time.Millisecond, run: noopWork(150)},
		{name: "baro", priority: fcsched.Low, desiredPeriod: 25 * time.Millisecond, run: noopWork(300)},
		{name: "mag", priority: fcsched.Low, desiredPeriod: 100 * time.Millisecond, run: noopWork(200)},
		{name: "gps", priority: fcsched.Low, desiredPeriod: 100 * time.Millisecond, run: noopWork(500)},
		{name: "serial", priority: fcsched.Low, desiredPeriod: 10 * time.Millisecond, run: noopWork(30)},
		{name: "rx", priority: fcsched.High, desiredPeriod: 10 * time.Millisecond, run: noopWork(40), ready: rxReady.Ready},
		{name: "battery", priority: fcsched.Idle, desiredPeriod: 500 * time.Millisecond, run: noopWork(20)},
		{name: "beeper", priority: fcsched.Idle, desiredPeriod: 100 * time.Millisecond, run: noopWork(10)},
		{name: "led_strip", priority: fcsched.Low, desiredPeriod: 20 * time.Millisecond, run: noopWork(60)},
		{name: "blackbox", priority: fcsched.Medium, desiredPeriod: 2 * time.Millisecond, run: noopWork(80)},
		{name: "telemetry", priority: fcsched.Idle, desiredPeriod: 250 * time.Millisecond, run: noopWork(10)},
	}

	tasks := make([]*fcsched.Task, 0, len(specs))

	for _, spec := range specs {
		priority := spec.priority
		period := spec.desiredPeriod
		if override := cfg[spec.name]; override != nil {
			if override.Priority != "" {
				p, err := parsePriority(override.Priority)
				if err != nil {
					return nil, fmt.Errorf("task %q: %w", spec.name, err)
				}
				priority = p
			}
			if override.DesiredPeriod > 0 {
				period = override.DesiredPeriod
			}
		}
		tasks = append(tasks, fcsched.NewTask(spec.name, priority, uint32(period.Microseconds()), spec.run, spec.ready))
	}

	return tasks, nil
}

// noopWork simulates a task body that takes roughly costMicros of CPU time;
// it is deliberately a busy-loop rather than a sleep, since a sleeping Run
// would yield the OS thread instead of the flight-control loop's own clock.
func noopWork(costMicros int) func() {
	return func() {
		deadline := time.Now().Add(time.Duration(costMicros) * time.Microsecond)
		for time.Now().Before(deadline) {
		}
	}
}

// toggleReady flips its answer on every other check, so the demo RX task
// becomes ready roughly half the time without any external stimulus.
type toggleReady struct {
	n int
}

func newToggleReady() *toggleReady { return &toggleReady{} }

func (r *toggleReady) Ready(sinceLastRunMicros uint32) bool {
	r.n++
	return r.n%2 == 0
}
