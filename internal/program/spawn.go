package program

import (
	"fmt"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/arashiyama/supervisr/internal/env"
)

// SpawnTemplate is the prepared launch descriptor for a program: argv,
// environment, working directory and stdout/stderr redirections. It is
// built once per program (BuildSpawnTemplate) and reused for every child
// spawned from it, per spec.md's Program.spawn_template.
type SpawnTemplate struct {
	Argv       []string
	Env        []string
	Dir        string
	Umask      int
	StdoutPath string
	StderrPath string
}

// ParseUmask parses an octal umask string ("022") into a mode_t value.
// An empty string yields 0, so the child is spawned with umask 000.
func ParseUmask(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid umask %q: %w", s, err)
	}
	return int(v), nil
}

// BuildSpawnTemplate prepares a SpawnTemplate from a program Config. It is
// computed once when the program is built or rebuilt (reload), never per
// child spawn.
func BuildSpawnTemplate(c Config) (SpawnTemplate, error) {
	if len(c.Cmd) == 0 {
		return SpawnTemplate{}, fmt.Errorf("program requires a non-empty cmd")
	}
	umask, err := ParseUmask(c.Umask)
	if err != nil {
		return SpawnTemplate{}, err
	}
	return SpawnTemplate{
		Argv:       append([]string(nil), c.Cmd...),
		Env:        buildEnv(c.Env),
		Dir:        c.WorkingDir,
		Umask:      umask,
		StdoutPath: c.StdoutPath,
		StderrPath: c.StderrPath,
	}, nil
}

// buildEnv composes the process environment as the supervisor's own OS
// env overridden by the program's key/value pairs, with ${VAR} expansion
// against the merged result (internal/env.Env.Merge).
func buildEnv(kv map[string]string) []string {
	e := env.New()
	for k, v := range kv {
		e = e.WithSet(k, v)
	}
	return e.Merge(nil)
}

// BuildCommand constructs a fresh *exec.Cmd from the template, ready to
// Start. Stdout/stderr are wired by the caller (internal/procexec), since
// opening the redirection targets may itself fail and needs to be
// reported distinctly from a spawn failure.
func (t SpawnTemplate) BuildCommand() *exec.Cmd {
	name := t.Argv[0]
	var args []string
	if len(t.Argv) > 1 {
		args = t.Argv[1:]
	}
	// #nosec G204 -- argv comes from the supervisor's own parsed config, not
	// from an external/untrusted request.
	cmd := exec.Command(name, args...)
	if t.Dir != "" {
		cmd.Dir = t.Dir
	}
	if len(t.Env) > 0 {
		cmd.Env = t.Env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}
