package main

import (
	"fmt"
	"os"

	"github.com/Ning0612/dedupwatch/internal/logger"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	_ = logger.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
