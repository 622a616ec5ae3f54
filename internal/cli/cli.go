// Package cli is the interactive line-oriented command reader (spec.md §6
// "Interactive commands"). It runs on its own worker, parsing stdin lines
// into supervisor.Instruction values and delivering them over a channel —
// it never touches supervisor state directly (spec.md §5).
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/arashiyama/supervisr/internal/supervisor"
)

// Run reads whitespace-separated, case-insensitive commands from r until
// EOF, sending parsed instructions to out. Unknown verbs and arity errors
// are diagnosed to diag and the line is dropped (spec.md §6).
func Run(r io.Reader, diag io.Writer, out chan<- supervisor.Instruction) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		verb := strings.ToLower(fields[0])
		args := fields[1:]

		switch verb {
		case "status":
			out <- supervisor.StatusCmd()
		case "start":
			if len(args) == 0 {
				fmt.Fprintln(diag, "start: which program ...?")
				continue
			}
			out <- supervisor.Start(args)
		case "stop":
			if len(args) == 0 {
				fmt.Fprintln(diag, "stop: which program ...?")
				continue
			}
			out <- supervisor.Stop(args)
		case "restart":
			if len(args) == 0 {
				fmt.Fprintln(diag, "restart: which program ...?")
				continue
			}
			out <- supervisor.Restart(args)
		case "reload":
			out <- supervisor.Reload()
		case "exit":
			out <- supervisor.Exit()
		default:
			fmt.Fprintf(diag, "unknown command %q\n", fields[0])
		}
	}
}
