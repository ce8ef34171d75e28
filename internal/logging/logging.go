package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFile is the name of the rotating log file inside the log folder.
const LogFile = "demand-matrix.log"

// Options controls the global logger.
type Options struct {
	Verbose bool
	// Quiet drops the console sink below warning level; CLI reports own stdout/stderr.
	Quiet bool
}

// Init initializes the global logger with dual sinks: os.Stderr and a rotating file.
func Init(opts Options) {
	// .env from the binary directory must be read here: Init runs before config.Load.
	exePath, err := os.Executable()
	if err == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}

	zerolog.SetGlobalLevel(Level(opts.Verbose, os.Getenv("LOG_LEVEL")))

	isTerminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	var console io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}
	if opts.Quiet {
		console = &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  zerolog.WarnLevel,
		}
	}

	logDir := os.Getenv("LOGS_FOLDER")
	if logDir == "" {
		if err == nil {
			logDir = filepath.Join(filepath.Dir(exePath), "logs")
		} else {
			logDir = "logs"
		}
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create log directory %q: %v\n", logDir, err)
		os.Exit(1)
	}

	testFile := filepath.Join(logDir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: log directory %q is not writable: %v\n", logDir, err)
		os.Exit(1)
	}
	_ = os.Remove(testFile)

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFile),
		MaxSize:    16, // megabytes
		MaxBackups: 8,
		MaxAge:     90, // days
		Compress:   true,
	}

	multi := zerolog.MultiLevelWriter(console, fileWriter)

	log.Logger = zerolog.New(multi).
		With().
		Timestamp().
		Logger()
}

// Level picks the global level: an explicit LOG_LEVEL wins, otherwise verbose means debug.
func Level(verbose bool, override string) zerolog.Level {
	if override = strings.TrimSpace(override); override != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(override)); err == nil {
			return lvl
		}
	}
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
