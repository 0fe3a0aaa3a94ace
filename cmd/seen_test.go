/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/seckatie/opinionwatch/internal/core/db"
)

func TestPrintSeen(t *testing.T) {
	opinions := []db.Opinion{
		{Title: "Old", URL: "https://courts.delaware.gov/chancery/old.pdf", DateFound: "2024-01-01T00:00:00Z"},
		{Title: "New", URL: "https://courts.delaware.gov/chancery/new.pdf", DateFound: "2024-02-01T00:00:00Z"},
	}

	t.Run("newest first", func(t *testing.T) {
		var buf bytes.Buffer
		if err := printSeen(&buf, opinions, 0); err != nil {
			t.Fatalf("printSeen failed: %v", err)
		}
		out := buf.String()
		if strings.Index(out, "New") > strings.Index(out, "Old") {
			t.Errorf("expected newest first:\n%s", out)
		}
		if !strings.Contains(out, "https://courts.delaware.gov/chancery/old.pdf") {
			t.Errorf("expected URLs in output:\n%s", out)
		}
	})

	t.Run("respects limit", func(t *testing.T) {
		var buf bytes.Buffer
		if err := printSeen(&buf, opinions, 1); err != nil {
			t.Fatalf("printSeen failed: %v", err)
		}
		if strings.Contains(buf.String(), "Old") {
			t.Errorf("expected only the newest opinion:\n%s", buf.String())
		}
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		if err := printSeen(&buf, nil, 0); err != nil {
			t.Fatalf("printSeen failed: %v", err)
		}
		if !strings.Contains(buf.String(), "No opinions seen yet.") {
			t.Errorf("unexpected output %q", buf.String())
		}
	})
}

func TestSeenCmd_Registered(t *testing.T) {
	limit, err := seenCmd.Flags().GetInt("limit")
	if err != nil {
		t.Fatalf("Failed to get limit flag: %v", err)
	}
	if limit != 0 {
		t.Errorf("limit default = %d, want 0", limit)
	}
}
