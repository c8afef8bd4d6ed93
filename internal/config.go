// Scheduler engine configuration.

// The configuration is loaded from a YAML document, with the following
// structure:
//
//  fcsched_config:
//    instance: fcsched
//    scheduler_config:
//      ...
//    debug_config:
//      ...
//    runner_config:
//      ...
//    log_config:
//      ...
//  tasks:
//    ...
//
// The "fcsched_config" section maps to the Config structure defined in this
// package. The "tasks" section is host specific (e.g. the demo task table
// used by cmd/fcsimd) and is not defined here; it is decoded into whatever
// structure the caller of LoadConfig passes in, the same way the teacher's
// LoadConfig decodes its "generators" section into a caller-supplied type.

package fcsched_internal

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FCSCHED_CONFIG_SECTION_NAME = "fcsched_config"
	TASKS_SECTION_NAME          = "tasks"

	CONFIG_INSTANCE_DEFAULT = "fcsched"
)

type Config struct {
	// Instance name, used only for logging/introspection; it has no bearing
	// on the scheduling algorithm.
	Instance string `yaml:"instance"`

	// Engine tunables (guard interval, period floor, EMA weight, ...).
	SchedulerConfig *SchedulerConfig `yaml:"scheduler_config"`

	// Debug trace sink (reference implementation, see debug.go).
	DebugConfig *DebugConfig `yaml:"debug_config"`

	// Demo main loop / HTTP introspection (cmd/fcsimd only, not part of the
	// engine's contract).
	RunnerConfig *RunnerConfig `yaml:"runner_config"`

	// Structured logging.
	LoggerConfig *LoggerConfig `yaml:"log_config"`
}

func DefaultConfig() *Config {
	return &Config{
		Instance:        CONFIG_INSTANCE_DEFAULT,
		SchedulerConfig: DefaultSchedulerConfig(),
		DebugConfig:     DefaultDebugConfig(),
		RunnerConfig:    DefaultRunnerConfig(),
		LoggerConfig:    DefaultLoggerConfig(),
	}
}

const (
	RUNNER_CONFIG_IDLE_PAUSE_DEFAULT        = 100 * time.Microsecond
	RUNNER_CONFIG_SHUTDOWN_MAX_WAIT_DEFAULT = 5 * time.Second
	RUNNER_CONFIG_HTTP_ADDR_DEFAULT         = ":8973"
)

type RunnerConfig struct {
	// How long to sleep after every Execute() pass, to avoid spinning a
	// simulated CPU at 100%. The reference hardware main
	// loop has no such pacing (it just spins as fast as the CPU allows); this
	// knob exists only for the Go demo daemon, which otherwise would pin a
	// host core for no reason.
	IdlePause time.Duration `yaml:"idle_pause"`

	// How long to wait for a graceful shutdown after a signal is received. A
	// negative value means indefinite wait, 0 means no wait (exit abruptly).
	ShutdownMaxWait time.Duration `yaml:"shutdown_max_wait"`

	// Address for the introspection HTTP endpoint; empty disables it.
	HttpAddr string `yaml:"http_addr"`
}

func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		IdlePause:       RUNNER_CONFIG_IDLE_PAUSE_DEFAULT,
		ShutdownMaxWait: RUNNER_CONFIG_SHUTDOWN_MAX_WAIT_DEFAULT,
		HttpAddr:        RUNNER_CONFIG_HTTP_ADDR_DEFAULT,
	}
}

// LoadConfig loads the configuration from the specified YAML file (or buf,
// for testing) as follows:
//   - the fcsched_config section is returned as a *Config structure
//   - the tasks section is loaded into the provided tasksConfig structure,
//     which is expected to have been primed with default values.
//
// Additionally an error is returned if the configuration could not be
// loaded or parsed.
func LoadConfig(cfgFile string, tasksConfig any, buf []byte) (*Config, error) {
	if buf == nil {
		// Normal case, buf is pre-populated only for testing.
		f, err := os.Open(cfgFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		buf, err = io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
		}
	}

	docNode := yaml.Node{}
	err := yaml.Unmarshal(buf, &docNode)
	if err != nil {
		return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
	}

	cfg := DefaultConfig()
	if docNode.Kind == yaml.DocumentNode && len(docNode.Content) > 0 {
		rootNode := docNode.Content[0]
		if rootNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("file: %q: invalid YAML root node %q", cfgFile, rootNode.Tag)
		}
		var toCfg any = nil
		for _, n := range rootNode.Content {
			if n.Kind == yaml.ScalarNode {
				switch n.Value {
				case FCSCHED_CONFIG_SECTION_NAME:
					toCfg = cfg
				case TASKS_SECTION_NAME:
					toCfg = tasksConfig
				}
				continue
			}
			if n.Kind == yaml.MappingNode && toCfg != nil {
				if err = n.Decode(toCfg); err != nil {
					return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
				}
			}
			toCfg = nil
		}
	}

	return cfg, nil
}
