package db

import (
	"strings"
	"testing"
)

func TestIntegrationLogPayloadIsBinary(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/00003_integration_logs.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "payload" {
			if fields[1] != "BYTEA" {
				t.Fatalf("expected BYTEA payload column, got %s", fields[1])
			}
			return
		}
	}
	t.Fatal("payload column not found")
}
