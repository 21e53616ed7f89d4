package common

import (
	"fmt"
	"os"
	"strings"
)

// LoadEnvFile reads KEY=VALUE pairs into the process environment. A missing
// file is a no-op; variables already set win over file values. Lines without
// an equals sign and #-comments are skipped.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open env file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("open env file: %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		_ = os.Setenv(key, value)
	}
	return nil
}

// PrintCIResult emits a single machine-parseable line for CI pipelines.
func PrintCIResult(ok bool, name string, details []string, err error) {
	status := "PASS"
	if !ok {
		status = "FAIL"
	}
	fmt.Printf("%s %s\n", status, name)
	for _, d := range details {
		fmt.Printf("  - %s\n", d)
	}
	if err != nil {
		fmt.Printf("  error: %v\n", err)
	}
}
