// Package procexec is the OS glue: spawning a child under a specified
// file-creation mask, sending it a named signal, and non-blockingly
// polling its exit status. It is the only package that touches syscall
// directly on behalf of the supervisor (spec.md §1, §2 "OS glue").
package procexec

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/arashiyama/supervisr/internal/program"
)

// umaskMu serializes Spawn calls because syscall.Umask mutates process-wide
// state; only the single supervision loop goroutine calls Spawn, but the
// lock documents and enforces that invariant rather than relying on it.
var umaskMu sync.Mutex

// Spawn builds and starts a child process from tpl under the given umask,
// restoring the supervisor's previous umask immediately after fork+exec.
// Stdout/stderr are opened fresh per spawn (append mode) so restarts don't
// clobber a previous instance's output.
func Spawn(tpl program.SpawnTemplate) (*exec.Cmd, error) {
	cmd := tpl.BuildCommand()

	outW, errW, err := openRedirections(tpl)
	if err != nil {
		return nil, err
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	umaskMu.Lock()
	old := syscall.Umask(tpl.Umask)
	err = cmd.Start()
	syscall.Umask(old)
	umaskMu.Unlock()

	if err != nil {
		closeIfCloser(outW)
		closeIfCloser(errW)
		return nil, err
	}
	return cmd, nil
}

func openRedirections(tpl program.SpawnTemplate) (io.Writer, io.Writer, error) {
	outW, err := openLogTarget(tpl.StdoutPath)
	if err != nil {
		return nil, nil, err
	}
	errW, err := openLogTarget(tpl.StderrPath)
	if err != nil {
		closeIfCloser(outW)
		return nil, nil, err
	}
	return outW, errW, nil
}

func openLogTarget(path string) (io.Writer, error) {
	if path == "" {
		f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	// #nosec G302 -- child stdout/stderr logs, world-unreadable is unneeded here.
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func closeIfCloser(w io.Writer) {
	if c, ok := w.(io.Closer); ok {
		_ = c.Close()
	}
}

// Signal sends the named signal to the child's entire process group so
// that shell-wrapped and forked descendants receive it too.
func Signal(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}

// Kill force-kills the child's process group (SIGKILL), best-effort.
func Kill(cmd *exec.Cmd) error {
	return Signal(cmd, syscall.SIGKILL)
}

// TryWait polls a child non-blockingly for exit, mirroring waitpid(WNOHANG).
// It returns (exited=false) while still running, (exited=true, code) once
// reaped, and a non-nil error only on a genuine wait failure (spec.md
// §4.2/§7: a poll error is fatal to the supervisor).
func TryWait(cmd *exec.Cmd) (exited bool, code int, signaled bool, err error) {
	var ws syscall.WaitStatus
	pid, werr := syscall.Wait4(cmd.Process.Pid, &ws, syscall.WNOHANG, nil)
	if werr != nil {
		return false, 0, false, werr
	}
	if pid == 0 {
		return false, 0, false, nil
	}
	if ws.Signaled() {
		return true, int(ws.Signal()), true, nil
	}
	return true, ws.ExitStatus(), false, nil
}

// Reap blocks until cmd's immediate child has been waited on, so a
// SIGKILL'd child (which dies promptly but still needs waitpid(2) to
// clear its zombie entry) never lingers. Call after Kill, before
// dropping the last reference to cmd. Safe to call on an already-reaped
// child: ECHILD is treated as "nothing left to reap", not an error.
func Reap(cmd *exec.Cmd) error {
	var ws syscall.WaitStatus
	_, err := syscall.Wait4(cmd.Process.Pid, &ws, 0, nil)
	if err != nil && err != syscall.ECHILD {
		return err
	}
	return nil
}
