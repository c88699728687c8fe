package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger for console output at the given level.
func Setup(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(consoleWriter(os.Stderr)).With().Timestamp().Logger()
	return nil
}

// RunLogger tees the global logger into a log file for a single command invocation.
type RunLogger struct {
	ID        string
	Command   string
	Path      string
	logFile   *os.File
	startTime time.Time
	previous  zerolog.Logger
	mutex     sync.Mutex
}

var (
	currentRun *RunLogger
	runMutex   sync.Mutex
)

// StartRun starts logging for one invocation of command. When dir is empty
// only the console is used.
func StartRun(dir, command string) (*RunLogger, error) {
	runMutex.Lock()
	defer runMutex.Unlock()

	if currentRun != nil {
		currentRun.close()
	}

	run := &RunLogger{
		ID:        uuid.NewString()[:8],
		Command:   command,
		startTime: time.Now(),
		previous:  log.Logger,
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		name := fmt.Sprintf("run_%s_%s_%s.log", command, run.ID, run.startTime.Format("20060102_150405"))
		run.Path = filepath.Join(dir, name)

		f, err := os.Create(run.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		run.logFile = f
		run.writeHeader()

		multi := zerolog.MultiLevelWriter(consoleWriter(os.Stderr), f)
		log.Logger = zerolog.New(multi).With().Timestamp().Str("run", run.ID).Logger()
	}

	currentRun = run
	log.Debug().Str("command", command).Str("log_file", run.Path).Msg("Run started")
	return run, nil
}

// CurrentRun returns the active run logger, if any.
func CurrentRun() *RunLogger {
	runMutex.Lock()
	defer runMutex.Unlock()
	return currentRun
}

// Close finalizes the log file and restores the previous global logger.
func (r *RunLogger) Close() {
	if r == nil {
		return
	}
	runMutex.Lock()
	defer runMutex.Unlock()
	r.close()
	if currentRun == r {
		currentRun = nil
	}
}

func (r *RunLogger) close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.logFile == nil {
		return
	}
	log.Logger = r.previous
	fmt.Fprintf(r.logFile, "\n# %s finished after %v\n", r.Command, time.Since(r.startTime).Round(time.Millisecond))
	r.logFile.Sync()
	r.logFile.Close()
	r.logFile = nil
}

func (r *RunLogger) writeHeader() {
	fmt.Fprintf(r.logFile, "# GRIMOIRE %s LOG\n# Run ID: %s\n# Start Time: %s\n\n",
		r.Command, r.ID, r.startTime.Format("2006-01-02 15:04:05"))
	r.logFile.Sync()
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
}
