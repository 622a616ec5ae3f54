// Package program holds the declarative program configuration and the
// prepared spawn template each supervised child is launched from.
package program

import "time"

// AutoRestart selects the policy consulted when a child exits.
type AutoRestart string

const (
	AutoRestartAlways     AutoRestart = "always"
	AutoRestartNever      AutoRestart = "never"
	AutoRestartUnexpected AutoRestart = "unexpected"
)

// Config is the immutable-during-tick configuration for one program.
type Config struct {
	Cmd           []string          `mapstructure:"cmd"`
	NumProcs      int               `mapstructure:"numprocs"`
	Umask         string            `mapstructure:"umask"` // octal, e.g. "022"
	WorkingDir    string            `mapstructure:"workingdir"`
	Env           map[string]string `mapstructure:"env"`
	StdoutPath    string            `mapstructure:"stdout"`
	StderrPath    string            `mapstructure:"stderr"`
	AutoStart     bool              `mapstructure:"autostart"`
	AutoRestart   AutoRestart       `mapstructure:"autorestart"`
	ExitCodes     []int             `mapstructure:"exitcodes"`
	StartRetries  int               `mapstructure:"startretries"`
	StartTime     int               `mapstructure:"starttime"` // seconds
	StopSignal    string            `mapstructure:"stopsignal"`
	StopTime      int               `mapstructure:"stoptime"` // seconds
}

// StartDuration returns StartTime as a time.Duration.
func (c Config) StartDuration() time.Duration { return time.Duration(c.StartTime) * time.Second }

// StopDuration returns StopTime as a time.Duration.
func (c Config) StopDuration() time.Duration { return time.Duration(c.StopTime) * time.Second }

// ExpectedExitCode reports whether code is listed in ExitCodes.
func (c Config) ExpectedExitCode(code int) bool {
	for _, e := range c.ExitCodes {
		if e == code {
			return true
		}
	}
	return false
}

// ShouldRestart applies the autorestart policy to a normal (non-signaled)
// exit code (spec.md §4.1 "Autorestart policy").
func (c Config) ShouldRestart(code int) bool {
	switch c.AutoRestart {
	case AutoRestartAlways:
		return true
	case AutoRestartUnexpected:
		return !c.ExpectedExitCode(code)
	default: // AutoRestartNever and anything unrecognized
		return false
	}
}

// Equal reports whether two configs are semantically identical, used by
// reload to tell "unchanged" programs from "changed" ones.
func (c Config) Equal(o Config) bool {
	if c.NumProcs != o.NumProcs || c.Umask != o.Umask || c.WorkingDir != o.WorkingDir ||
		c.StdoutPath != o.StdoutPath || c.StderrPath != o.StderrPath ||
		c.AutoStart != o.AutoStart || c.AutoRestart != o.AutoRestart ||
		c.StartRetries != o.StartRetries || c.StartTime != o.StartTime ||
		c.StopSignal != o.StopSignal || c.StopTime != o.StopTime {
		return false
	}
	if len(c.Cmd) != len(o.Cmd) {
		return false
	}
	for i := range c.Cmd {
		if c.Cmd[i] != o.Cmd[i] {
			return false
		}
	}
	if len(c.Env) != len(o.Env) {
		return false
	}
	for k, v := range c.Env {
		if o.Env[k] != v {
			return false
		}
	}
	if len(c.ExitCodes) != len(o.ExitCodes) {
		return false
	}
	om := make(map[int]bool, len(o.ExitCodes))
	for _, e := range o.ExitCodes {
		om[e] = true
	}
	for _, e := range c.ExitCodes {
		if !om[e] {
			return false
		}
	}
	return true
}
