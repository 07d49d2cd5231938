package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override the configuration file.
const (
	EnvOutput      = "NEUROSIM_OUTPUT"
	EnvRecord      = "NEUROSIM_RECORD"
	EnvLogLevel    = "NEUROSIM_LOG_LEVEL"
	EnvMonitorPort = "NEUROSIM_MONITOR_PORT"
)

// LoadDotEnv loads environment files into the process environment. Variables
// that are already set are kept. Without arguments it loads ".env" if the
// file exists.
func LoadDotEnv(paths ...string) error {
	if len(paths) > 0 {
		return godotenv.Load(paths...)
	}

	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// ApplyEnv overrides the configuration with the NEUROSIM_* environment
// variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvOutput); ok {
		c.SetOutput(v)
	}

	if v, ok := os.LookupEnv(EnvRecord); ok {
		c.SetRecord(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(EnvMonitorPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ParseError{
				Source: EnvMonitorPort,
				Reason: fmt.Sprintf("%q is not a port number", v),
			}
		}

		c.Monitor.Enabled = true
		c.Monitor.Port = port
	}

	return nil
}
