package orchestrator

import (
	"io"
	"math/rand/v2"

	"github.com/ShayCichocki/steptest/internal/config"
	"github.com/ShayCichocki/steptest/internal/runner"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
// These are only used during construction.
type orchestratorOptions struct {
	settings  config.Settings
	output    io.Writer
	logger    *DebugLogger
	rng       *rand.Rand
	recorder  runner.Recorder
	sessionID string
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		settings: config.DefaultSettings(),
	}
}

// WithSettings sets the initial settings. Configure can change them later.
// Invalid fields are replaced by their defaults.
func WithSettings(s config.Settings) Option {
	return func(o *orchestratorOptions) { o.settings = s }
}

// WithOutput sets the writer receiving verbose progress. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *orchestratorOptions) { o.output = w }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithRand sets the random source used by the random expansion policy.
func WithRand(r *rand.Rand) Option {
	return func(o *orchestratorOptions) { o.rng = r }
}

// WithRecorder sets the recorder receiving every plan outcome.
func WithRecorder(r runner.Recorder) Option {
	return func(o *orchestratorOptions) { o.recorder = r }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(o *orchestratorOptions) { o.sessionID = id }
}
