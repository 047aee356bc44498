package config

import (
	"fmt"
	"io"
	"os"
)

// Exitf reports a startup failure on stderr, prefixed with the command name,
// and exits with code 1. Use it before a structured logger is available.
func Exitf(command string, format string, args ...any) {
	writeFatal(os.Stderr, command, format, args...)
	os.Exit(1)
}

func writeFatal(w io.Writer, command string, format string, args ...any) {
	if command != "" {
		fmt.Fprintf(w, "%s: ", command)
	}
	fmt.Fprintf(w, format+"\n", args...)
}
