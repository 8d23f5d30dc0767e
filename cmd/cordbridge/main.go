package main

import (
	"fmt"
	"os"

	"github.com/tillberg/autorestart"

	"github.com/soyeahso/cordbridge/internal/cli"
)

func main() {
	// Development convenience: re-exec when the binary is rebuilt.
	if os.Getenv("CORDBRIDGE_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
