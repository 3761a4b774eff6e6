package diagnostics

import (
	"fmt"
	"io"
)

const (
	ansiRed   = "\x1b[31m"
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

// Render writes err the way the command line reports it.
func Render(w io.Writer, err error, color bool) {
	de, ok := AsDiagnostic(err)
	if !ok {
		if color {
			fmt.Fprintf(w, "%serror:%s %v\n", ansiRed, ansiReset, err)
			return
		}
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	if color {
		fmt.Fprintf(w, "%s%s%s: %serror[%s]%s %s: %s\n",
			ansiBold, de.Pos, ansiReset, ansiRed, de.Code, ansiReset, de.Code.Title(), de.Message)
		return
	}
	fmt.Fprintf(w, "%s: error[%s] %s: %s\n", de.Pos, de.Code, de.Code.Title(), de.Message)
}
