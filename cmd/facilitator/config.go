package main

import "os"

type config struct {
	Port     string
	LogLevel string
	Env      string
}

func loadConfig() config {
	return config{
		Port:     getenv("PORT", "3000"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Env:      getenv("APP_ENV", "development"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
