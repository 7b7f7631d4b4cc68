package main

import (
	stderrors "errors"
	"fmt"
	"os"

	ierrors "iresolve/internal/errors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// printError writes err and any suggested fixes to stderr.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var e *ierrors.Error
	if !stderrors.As(err, &e) || len(e.SuggestedFixes) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "Suggested fixes:")
	for _, fix := range e.SuggestedFixes {
		fmt.Fprintf(os.Stderr, "  - %s\n", fix.Description)
		if fix.Command != "" {
			fmt.Fprintf(os.Stderr, "    $ %s\n", fix.Command)
		}
	}
}
