package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/reachscan/internal/app"
)

func main() {
	if err := app.Run(nil, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "reachscan: %v\n", err)
		os.Exit(1)
	}
}
