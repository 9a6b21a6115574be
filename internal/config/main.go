package config

import (
	"os"
	"strconv"
	"time"
)

var defaultValues = map[string]interface{}{
	"TELEMETRY_MAX_PREINIT_TASKS":         1000,   // Tasks buffered before Initialize completes
	"TELEMETRY_UPLOAD_MAX_ATTEMPTS":       5,      // Attempts before a ping is dropped
	"TELEMETRY_UPLOAD_BACKOFF_INITIAL_MS": 1000,   // First retry delay
	"TELEMETRY_UPLOAD_BACKOFF_MAX_MS":     300000, // Retry delay cap
	"TELEMETRY_UPLOAD_TIMEOUT_MS":         30000,  // HTTP uploader request timeout
	"TELEMETRY_SHUTDOWN_TIMEOUT_MS":       30000,  // Default dispatcher drain deadline
	"TELEMETRY_SQLITE_SYNC":               "FULL", // SQLite synchronous pragma
	"TELEMETRY_DEBUG":                     false,  // Enable debug logging
	"TELEMETRY_LOG_PINGS":                 false,  // Log assembled ping documents
}

func StringValue(key string) string {
	if defaultValue, ok := defaultValues[key]; ok {
		return getEnvVar(key, defaultValue.(string)).(string)
	}
	return ""
}

// IntValue gets an int value from the env or default
func IntValue(key string) int {

	if defaultValue, ok := defaultValues[key]; ok {
		return getEnvVar(key, defaultValue.(int)).(int)
	}
	return 0
}

// BoolValue gets a bool value from the env or default
func BoolValue(key string) bool {

	if defaultValue, ok := defaultValues[key]; ok {
		return getEnvVar(key, defaultValue.(bool)).(bool)
	}
	return false
}

// MillisValue reads an int key holding milliseconds as a duration.
func MillisValue(key string) time.Duration {
	return time.Duration(IntValue(key)) * time.Millisecond
}

func getEnvVar(key string, fallback interface{}) interface{} {

	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	switch fallback.(type) {
	case string:
		return value
	case bool:
		valueAsBool, err := strconv.ParseBool(value)
		if err != nil {
			return fallback
		}
		return valueAsBool
	case int:
		valueAsInt, err := strconv.Atoi(value)
		if err != nil {
			return fallback
		}
		return valueAsInt
	}
	return fallback
}
