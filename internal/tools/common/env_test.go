package common

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoadEnvFileMissingIsNoop(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "no-such.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestLoadEnvFileDirectoryErrors(t *testing.T) {
	if err := LoadEnvFile(t.TempDir()); err == nil {
		t.Fatal("expected error when the path is a directory")
	}
}

func TestLoadEnvFileParsing(t *testing.T) {
	t.Setenv("ENVTEST_SECRET", "already-set-in-env")
	path := writeEnvFile(t, `
# local development settings
ENVTEST_SECRET=from-file
ENVTEST_DATABASE_URL = "file:dev.db"
ENVTEST_HTTP_ADDR=':3001'
garbage line without equals
=value-without-key
`)

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load env file: %v", err)
	}

	for key, want := range map[string]string{
		"ENVTEST_SECRET":       "already-set-in-env",
		"ENVTEST_DATABASE_URL": "file:dev.db",
		"ENVTEST_HTTP_ADDR":    ":3001",
	} {
		if got := os.Getenv(key); got != want {
			t.Fatalf("%s = %q, want %q", key, got, want)
		}
	}
	for _, key := range []string{"ENVTEST_DATABASE_URL", "ENVTEST_HTTP_ADDR"} {
		t.Cleanup(func() { os.Unsetenv(key) })
	}
}
