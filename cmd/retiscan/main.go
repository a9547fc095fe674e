package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; environment variables still apply.
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
