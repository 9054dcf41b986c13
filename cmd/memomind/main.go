package main

import (
	_ "time/tzdata" // Practice timezones resolve without a system zoneinfo

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()
	Execute()
}
