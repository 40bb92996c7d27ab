package config

import (
	"flag"
	"fmt"
	"strconv"
)

// ApplyFlags overrides config values with any flags explicitly set on fs.
// Flags are matched by name, e.g. "db-path" sets db_path and "baud" sets
// serial_baud_rate. Flags that were not set, and flags with no matching
// key, leave the config untouched. The result is validated.
func (c *Config) ApplyFlags(fs *flag.FlagSet) error {
	var errs []error
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "listen":
			c.Listen = ptrString(v)
		case "db-path":
			c.DBPath = ptrString(v)
		case "model":
			c.ModelPath = ptrString(v)
		case "simulate-vitals":
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("--%s: %w", f.Name, err))
				return
			}
			c.SimulateVitals = ptrBool(b)
		case "server-url":
			c.ServerURL = ptrString(v)
		case "log-limit":
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("--%s: %w", f.Name, err))
				return
			}
			c.PredictionLogLimit = ptrInt(n)
		case "out":
			c.AnalysisOutputDir = ptrString(v)
		case "port":
			c.SerialPort = ptrString(v)
		case "baud":
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("--%s: %w", f.Name, err))
				return
			}
			c.SerialBaudRate = ptrInt(n)
		case "retry-delay":
			c.SerialRetryDelay = ptrString(v)
		case "fixtures":
			c.SerialFixtures = ptrString(v)
		}
	})
	if len(errs) > 0 {
		return errs[0]
	}
	return c.Validate()
}
