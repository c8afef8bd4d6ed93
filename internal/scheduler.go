// Cooperative, priority-aware task scheduler for a soft-real-time
// flight-control loop.
//
//	Task Definition
//	===============
//
// For the purpose of scheduling, each unit of work is a Task: a mandatory
// Run capability plus an optional Ready capability. Ready present selects
// the event-driven branch of the readiness rule below; Ready absent selects
// the time-driven branch (phase-aligned on DesiredPeriod).
//
//	Scheduler Architecture
//	======================
//
//	        +-----------+        Execute()        +------------+
//	        | Clock     | ---------------------->  | Selector   |
//	        +-----------+                          +------------+
//	                                                       |
//	                                                 dispatch at
//	                                                 most one Task
//	                                                       v
//	                                                 +------------+
//	                                                 |  Run()     |
//	                                                 +------------+
//	                                                       |
//	                                                 stats + guard
//	                                                       v
//	                                                 +------------+
//	                                                 | taskSystem |
//	                                                 +------------+
//
// Unlike the teacher's scheduler (a heap + worker-pool design feeding
// several goroutines), this engine dispatches at most one task per Execute()
// call, synchronously, on the caller's own goroutine: flight-control tasks
// run to completion with no preemption and no concurrency between them.

package fcsched_internal

import (
	"fmt"
	"sync"

	"github.com/huandu/go-clone"
)

// Priority tiers; the numeric rank is used directly as the starvation-score
// multiplier (see starvationPriority in selectTask).
type Priority int

const (
	Idle Priority = iota
	Low
	Medium
	High
	Realtime
)

var priorityNameMap = map[Priority]string{
	Idle:     "idle",
	Low:      "low",
	Medium:   "medium",
	High:     "high",
	Realtime: "realtime",
}

func (p Priority) String() string {
	if name, ok := priorityNameMap[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// TaskId indexes into the Scheduler's task table. Self routes a control
// surface call to whichever task is currently executing, if any.
type TaskId int

const Self TaskId = -1

// Task is a capability object: a mandatory Run and an optional Ready. The
// remaining fields are the mutable scheduling state the original C source
// kept inline in cfTask_t; they are kept inline here too rather than in a
// parallel array, since nothing in this engine needs to address them
// independently of the task they describe.
type Task struct {
	// Immutable for the lifetime of the task.
	Name     string
	Priority Priority
	Run      func()
	Ready    func(sinceLastRunMicros uint32) bool

	// Mutable scheduling state.
	desiredPeriod          uint32
	isEnabled              bool
	isWaitingToBeRan       bool
	lastIdealExecutionTime uint32
	lastExecutedAt         uint32
	taskLatestDeltaTime    uint32
	averageExecutionTime   uint32
	maxExecutionTime       uint32
	totalExecutionTime     uint64
}

// Period returns the task's current desired period in microseconds, mainly
// useful for printing a task table before a Scheduler exists to ask GetInfo.
func (t *Task) Period() uint32 {
	return t.desiredPeriod
}

// NewTask builds a task descriptor. desiredPeriodMicros is clamped to the
// default period floor (a zero or sub-floor period would otherwise divide by
// zero in the readiness check); a Scheduler built with a non-default
// PeriodFloorMicros re-clamps on the first SetPeriod call, same as for any
// other task.
func NewTask(name string, priority Priority, desiredPeriodMicros uint32, run func(), ready func(uint32) bool) *Task {
	if desiredPeriodMicros < SCHEDULER_PERIOD_FLOOR_MICROS_DEFAULT {
		desiredPeriodMicros = SCHEDULER_PERIOD_FLOOR_MICROS_DEFAULT
	}
	return &Task{
		Name:          name,
		Priority:      priority,
		Run:           run,
		Ready:         ready,
		desiredPeriod: desiredPeriodMicros,
	}
}

const (
	SCHEDULER_GUARD_MIN_MICROS_DEFAULT    = 10
	SCHEDULER_GUARD_MAX_MICROS_DEFAULT    = 300
	SCHEDULER_GUARD_MARGIN_MICROS_DEFAULT = 25
	SCHEDULER_PERIOD_FLOOR_MICROS_DEFAULT = 100
	SCHEDULER_EMA_DENOMINATOR_DEFAULT     = 32
)

type SchedulerConfig struct {
	// Realtime guard interval bounds, see §4.2 of the scheduling policy.
	GuardMinMicros    uint32 `yaml:"guard_min_micros"`
	GuardMaxMicros    uint32 `yaml:"guard_max_micros"`
	GuardMarginMicros uint32 `yaml:"guard_margin_micros"`

	// Minimum allowed DesiredPeriod, enforced by SetPeriod.
	PeriodFloorMicros uint32 `yaml:"period_floor_micros"`

	// EMA weight denominator for averageExecutionTime (weight is 1/N).
	EmaDenominator uint32 `yaml:"ema_denominator"`

	// Equivalent of the original's SKIP_TASK_STATISTICS build-time switch:
	// when true, Max/TotalExecutionTime are not accumulated and GetInfo
	// returns them as zero. The EMA average is never skipped since the
	// guard depends on it.
	SkipTaskStatistics bool `yaml:"skip_task_statistics"`
}

func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		GuardMinMicros:     SCHEDULER_GUARD_MIN_MICROS_DEFAULT,
		GuardMaxMicros:     SCHEDULER_GUARD_MAX_MICROS_DEFAULT,
		GuardMarginMicros:  SCHEDULER_GUARD_MARGIN_MICROS_DEFAULT,
		PeriodFloorMicros:  SCHEDULER_PERIOD_FLOOR_MICROS_DEFAULT,
		EmaDenominator:     SCHEDULER_EMA_DENOMINATOR_DEFAULT,
		SkipTaskStatistics: false,
	}
}

var schedulerLog = NewCompLogger("scheduler")

// Scheduler owns the task table and the process-wide scheduling state that
// the original C source kept as file-scope globals (currentTask,
// realtimeGuardInterval, the two pass counters, averageSystemLoadPercent).
type Scheduler struct {
	cfg   *SchedulerConfig
	clock Clock
	debug DebugSink

	mu    sync.Mutex
	tasks []*Task

	currentTask *Task

	realtimeGuardInterval uint32

	currentSchedulerExecutionPasses         uint32
	currentSchedulerExecutionPassesWithWork uint32
	averageSystemLoadPercent                uint16
}

// NewScheduler builds a scheduler over a fixed task table. The table itself
// (task set, clock, debug sink) is supplied by the host, per §6: none of
// these are defined by the engine.
func NewScheduler(cfg *SchedulerConfig, tasks []*Task, clock Clock, debug DebugSink) (*Scheduler, error) {
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}
	if clock == nil {
		return nil, fmt.Errorf("fcsched: NewScheduler: clock must not be nil")
	}
	if debug == nil {
		debug = NoopDebugSink{}
	}

	s := &Scheduler{
		cfg:                   cfg,
		clock:                 clock,
		debug:                 debug,
		tasks:                 tasks,
		realtimeGuardInterval: cfg.GuardMaxMicros,
	}
	schedulerLog.Infof("task_count=%d, guard_interval=%dus", len(tasks), s.realtimeGuardInterval)
	return s, nil
}

// Init disables every task and clears its waiting/phase state. Other fields
// (statistics) are left as-is, same as the original schedulerInit.
func (s *Scheduler) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		task.isEnabled = false
		task.isWaitingToBeRan = false
		task.lastIdealExecutionTime = 0
	}
}

func (s *Scheduler) resolveTask(id TaskId) *Task {
	if id == Self {
		return s.currentTask
	}
	if int(id) < 0 || int(id) >= len(s.tasks) {
		return nil
	}
	return s.tasks[id]
}

// SetEnabled enables or disables a task. Enabling a task whose Run is nil is
// silently clamped to disabled, per §7.
func (s *Scheduler) SetEnabled(id TaskId, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.resolveTask(id)
	if task == nil {
		return
	}
	task.isEnabled = enabled && task.Run != nil
}

// SetPeriod clamps the requested period to the configured PeriodFloorMicros
// (100us, i.e. 10kHz, by default).
func (s *Scheduler) SetPeriod(id TaskId, desiredPeriodMicros uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.resolveTask(id)
	if task == nil {
		return
	}
	floor := s.cfg.PeriodFloorMicros
	if desiredPeriodMicros < floor {
		desiredPeriodMicros = floor
	}
	task.desiredPeriod = desiredPeriodMicros
}

// GetDelta returns the last observed inter-dispatch delta for the task, or 0
// if the id is invalid (§7: invalid ids are silently ignored).
func (s *Scheduler) GetDelta(id TaskId) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.resolveTask(id)
	if task == nil {
		return 0
	}
	return task.taskLatestDeltaTime
}

// TaskInfo is a snapshot of a task's scheduling state, safe to retain after
// the call returns: it is a deep copy, never a live pointer into scheduler
// state (§4.4, §9).
type TaskInfo struct {
	Name                 string
	IsEnabled            bool
	DesiredPeriod        uint32
	Priority             Priority
	MaxExecutionTime     uint32
	TotalExecutionTime   uint64
	AverageExecutionTime uint32
	LatestDeltaTime      uint32
}

// GetInfo copies out a task's introspectable state. The second return value
// is false for an invalid id (Self with no current task, or out of range).
func (s *Scheduler) GetInfo(id TaskId) (*TaskInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.resolveTask(id)
	if task == nil {
		return nil, false
	}

	info := &TaskInfo{
		Name:                 task.Name,
		IsEnabled:            task.isEnabled,
		DesiredPeriod:        task.desiredPeriod,
		Priority:             task.Priority,
		AverageExecutionTime: task.averageExecutionTime,
		LatestDeltaTime:      task.taskLatestDeltaTime,
	}
	if !s.cfg.SkipTaskStatistics {
		info.MaxExecutionTime = task.maxExecutionTime
		info.TotalExecutionTime = task.totalExecutionTime
	}
	// clone.Clone guards against a future TaskInfo field becoming a pointer
	// or slice and accidentally aliasing scheduler-owned memory; for the
	// current flat struct it is a straight value copy, same defensive use
	// the teacher makes of it when snapshotting config structs in tests.
	return clone.Clone(info).(*TaskInfo), true
}

// AverageSystemLoadPercent is the read-only load gauge maintained by the
// system maintenance task (§4.3).
func (s *Scheduler) AverageSystemLoadPercent() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.averageSystemLoadPercent
}

// RealtimeGuardInterval returns the current guard, for tests and
// introspection.
func (s *Scheduler) RealtimeGuardInterval() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realtimeGuardInterval
}

// Execute performs one selection pass: it samples the clock once, updates
// readiness for every enabled task, picks at most one ready task subject to
// the realtime guard, dispatches it, and updates statistics. It is not
// reentrant; a Task's Run MUST NOT call Execute. The lock is held for
// selection and for the statistics update, but released for the duration of
// the dispatched Run() itself, since a task is allowed to call back into the
// control surface for its own id (e.g. SetPeriod(Self, ...)) and the system
// task's Run calls back into the guard computation below.
func (s *Scheduler) Execute() {
	selectedTask, currentTime := s.selectTask()
	if selectedTask == nil {
		return
	}

	before := s.clock.NowMicros()
	selectedTask.Run()
	taskExecutionTime := s.clock.NowMicros() - before

	s.finishDispatch(selectedTask, currentTime, taskExecutionTime)
}

// selectTask picks at most one ready task and marks it dispatched, returning
// it along with the clock sample the selection pass was based on. The lock
// is released before the caller invokes Run, since Run is allowed to call
// back into the control surface for its own task id (e.g. SetPeriod(Self,
// ...)) or, for the system task, into systemTask's guard computation.
func (s *Scheduler) selectTask() (*Task, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentTime := s.clock.NowMicros()

	// Realtime horizon: nearest deadline among enabled realtime tasks, using
	// a signed difference so a 32-bit wrap is tolerated (§5).
	const noRealtimeHorizon = ^uint32(0)
	timeToNextRealtimeTask := noRealtimeHorizon
	for _, task := range s.tasks {
		if !task.isEnabled || task.Priority < Realtime {
			continue
		}
		nextExecuteAt := task.lastExecutedAt + task.desiredPeriod
		if int32(currentTime-nextExecuteAt) >= 0 {
			timeToNextRealtimeTask = 0
		} else {
			newInterval := nextExecuteAt - currentTime
			if newInterval < timeToNextRealtimeTask {
				timeToNextRealtimeTask = newInterval
			}
		}
	}
	outsideRealtimeGuardInterval := timeToNextRealtimeTask > s.realtimeGuardInterval

	var (
		selectedTask                  *Task
		selectedTaskStarvationPriority uint32
	)

	for _, task := range s.tasks {
		if !task.isEnabled {
			continue
		}

		if !task.isWaitingToBeRan {
			if task.Ready != nil {
				// Event-driven: the check is allowed to cost time; that cost
				// is attributed to this pass, not to the task.
				if task.Ready(currentTime - task.lastExecutedAt) {
					task.lastIdealExecutionTime = currentTime
					task.isWaitingToBeRan = true
				}
			} else {
				// Time-driven. NOTE: this comparison is deliberately a plain
				// uint32 one, not the signed wrap-tolerant comparison used
				// for the realtime horizon above — that divergence exists
				// in the reference source and is preserved rather than
				// "fixed" (see Open Questions in DESIGN.md/SPEC_FULL.md).
				if task.lastIdealExecutionTime+task.desiredPeriod <= currentTime {
					for task.lastIdealExecutionTime+task.desiredPeriod <= currentTime {
						task.lastIdealExecutionTime += task.desiredPeriod
					}
					task.isWaitingToBeRan = true
				}
			}
		}

		if task.isWaitingToBeRan {
			taskAge := 1 + (currentTime-task.lastIdealExecutionTime)/task.desiredPeriod
			starvationPriority := 1 + uint32(task.Priority)*taskAge

			if starvationPriority > selectedTaskStarvationPriority {
				canBeChosen := outsideRealtimeGuardInterval || task.Priority == Realtime
				if canBeChosen {
					selectedTaskStarvationPriority = starvationPriority
					selectedTask = task
				}
			}
		}
	}

	s.currentTask = selectedTask

	s.currentSchedulerExecutionPasses++
	if selectedTask == nil {
		return nil, currentTime
	}
	s.currentSchedulerExecutionPassesWithWork++

	selectedTask.taskLatestDeltaTime = currentTime - selectedTask.lastExecutedAt
	selectedTask.lastExecutedAt = currentTime

	return selectedTask, currentTime
}

// finishDispatch records the statistics for a just-completed Run and clears
// the task's waiting/current-task bookkeeping. Called unlocked, after Run
// has returned.
func (s *Scheduler) finishDispatch(task *Task, currentTime, taskExecutionTime uint32) {
	s.mu.Lock()

	s.currentTask = nil
	task.isWaitingToBeRan = false

	ema := s.cfg.EmaDenominator
	task.averageExecutionTime = (task.averageExecutionTime*(ema-1) + taskExecutionTime) / ema

	if !s.cfg.SkipTaskStatistics {
		task.totalExecutionTime += uint64(taskExecutionTime)
		if taskExecutionTime > task.maxExecutionTime {
			task.maxExecutionTime = taskExecutionTime
		}
	}

	s.mu.Unlock()

	s.debug.SetSlot(3, s.clock.NowMicros()-currentTime-taskExecutionTime)
}

// RunSystemTask is the exported entry point for wiring the system
// maintenance task's Run at construction time, when the task descriptor
// must exist before the Scheduler that binds to it (see cmd/fcsimd, which
// builds a placeholder Task and only assigns its Run once the Scheduler is
// constructed).
func (s *Scheduler) RunSystemTask() {
	s.systemTask()
}

func (s *Scheduler) systemTask() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentSchedulerExecutionPasses > 0 {
		s.averageSystemLoadPercent = uint16(100 * s.currentSchedulerExecutionPassesWithWork / s.currentSchedulerExecutionPasses)
		s.currentSchedulerExecutionPasses = 0
		s.currentSchedulerExecutionPassesWithWork = 0
	}

	var maxNonRealtimeTaskTime uint32
	for _, task := range s.tasks {
		if task.Priority == Realtime {
			continue
		}
		if task.averageExecutionTime > maxNonRealtimeTaskTime {
			maxNonRealtimeTaskTime = task.averageExecutionTime
		}
	}

	guard := maxNonRealtimeTaskTime
	if guard < s.cfg.GuardMinMicros {
		guard = s.cfg.GuardMinMicros
	} else if guard > s.cfg.GuardMaxMicros {
		guard = s.cfg.GuardMaxMicros
	}
	s.realtimeGuardInterval = guard + s.cfg.GuardMarginMicros

	s.debug.SetSlot(2, s.realtimeGuardInterval)
}
