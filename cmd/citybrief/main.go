package main

import (
	"os"

	"github.com/citybrief/citybrief/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
