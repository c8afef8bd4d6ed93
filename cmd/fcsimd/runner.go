// The runner is the main entry point for an fcsimd instance: it loads
// configuration, builds the scheduler and demo task table, starts the
// optional introspection HTTP endpoint, and drives Execute() from a single
// dedicated goroutine until a shutdown signal arrives.

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	fcsched "github.com/bgp59/fcsched/internal"
)

var runnerLog = fcsched.NewCompLogger("runner")

// daemon bundles the wired-up engine and demo table, before any goroutine
// has been started against it; buildDaemon is shared by run() and by tests
// that want to drive Execute() and the HTTP handler deterministically.
type daemon struct {
	cfg     *fcsched.Config
	sched   *fcsched.Scheduler
	tasks   []*fcsched.Task
	handler http.Handler
}

func buildDaemon(cfgFile string, clock fcsched.Clock) (*daemon, error) {
	tasksConfig := DefaultTasksConfig()
	// An empty cfgFile means "run with built-in defaults"; passing a non-nil
	// empty buffer steers LoadConfig away from its os.Open path, since nil
	// means "read cfgFile from disk" there.
	var buf []byte
	if cfgFile == "" {
		buf = []byte{}
	}
	cfg, err := fcsched.LoadConfig(cfgFile, &tasksConfig, buf)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	debug, err := fcsched.NewDebugSink(cfg.DebugConfig)
	if err != nil {
		return nil, fmt.Errorf("debug sink: %w", err)
	}

	demoTasks, err := newDemoTaskTable(tasksConfig)
	if err != nil {
		return nil, fmt.Errorf("task table: %w", err)
	}

	// The system task's Run closes over sched, which does not exist until
	// after NewScheduler returns; wire it in right after construction.
	systemTask := fcsched.NewTask("system", fcsched.High, uint32(systemTaskPeriod.Microseconds()), nil, nil)
	tasks := append([]*fcsched.Task{systemTask}, demoTasks...)

	sched, err := fcsched.NewScheduler(cfg.SchedulerConfig, tasks, clock, debug)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	systemTask.Run = sched.RunSystemTask

	sched.Init()
	for i := range tasks {
		sched.SetEnabled(fcsched.TaskId(i), true)
	}

	return &daemon{
		cfg:     cfg,
		sched:   sched,
		tasks:   tasks,
		handler: newIntrospectionHandler(sched, tasks),
	}, nil
}

func run(cfgFile string) int {
	d, err := buildDaemon(cfgFile, fcsched.NewClock())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	cfg, sched, tasks := d.cfg, d.sched, d.tasks

	if err := fcsched.SetLogger(cfg.LoggerConfig); err != nil {
		fmt.Fprintf(os.Stderr, "error setting the logger: %v\n", err)
		return 1
	}

	runId := uuid.New().String()
	log := runnerLog.WithField("run_id", runId)
	log.Infof("instance=%s, task_count=%d", cfg.Instance, len(tasks))

	var httpServer *http.Server
	if cfg.RunnerConfig.HttpAddr != "" {
		httpServer = &http.Server{
			Addr:    cfg.RunnerConfig.HttpAddr,
			Handler: d.handler,
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("http server: %v", err)
			}
		}()
		log.Infof("introspection endpoint listening on %s", cfg.RunnerConfig.HttpAddr)
	}

	stopLoop := make(chan struct{})
	loopDone := make(chan struct{})
	go mainLoop(sched, cfg.RunnerConfig.IdlePause, stopLoop, loopDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Warnf("%s signal received, shutting down", sig)

	close(stopLoop)

	shutdownDone := make(chan struct{})
	go func() {
		<-loopDone
		if httpServer != nil {
			httpServer.Close()
		}
		close(shutdownDone)
	}()

	if cfg.RunnerConfig.ShutdownMaxWait > 0 {
		select {
		case <-shutdownDone:
		case <-time.After(cfg.RunnerConfig.ShutdownMaxWait):
			log.Errorf("shutdown timed out after %s, force exit", cfg.RunnerConfig.ShutdownMaxWait)
			return 1
		}
	} else if cfg.RunnerConfig.ShutdownMaxWait < 0 {
		<-shutdownDone
	}

	return 0
}

// printInfo loads the configuration and demo task table and prints a
// one-line summary per task, without starting the scheduler.
func printInfo(cfgFile string) error {
	tasksConfig := DefaultTasksConfig()
	var buf []byte
	if cfgFile == "" {
		buf = []byte{}
	}
	cfg, err := fcsched.LoadConfig(cfgFile, &tasksConfig, buf)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	demoTasks, err := newDemoTaskTable(tasksConfig)
	if err != nil {
		return fmt.Errorf("building task table: %w", err)
	}

	fmt.Printf("instance: %s\n", cfg.Instance)
	fmt.Printf("system task period: %s\n", systemTaskPeriod)
	for _, task := range demoTasks {
		fmt.Printf("  %-12s priority=%-8s period=%dus\n", task.Name, task.Priority, task.Period())
	}
	return nil
}

// mainLoop repeatedly calls Execute() on its own goroutine, pausing briefly
// after every pass so a simulated CPU does not spin at 100% for no reason
// (§5: this pacing exists only for the Go demo daemon, not for the engine
// itself, which assumes a bare-metal caller that can spin freely).
func mainLoop(sched *fcsched.Scheduler, idlePause time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		sched.Execute()
		if idlePause > 0 {
			time.Sleep(idlePause)
		}
	}
}
