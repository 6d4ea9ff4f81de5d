package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/stacksos/aicore/cli/cmd"
)

func main() {
	// Best effort; a missing .env is fine.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
