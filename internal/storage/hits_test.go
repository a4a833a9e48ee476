package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHitsRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "athena-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	// Newest first in memory
	hits := []Hit{
		{IP: "10.0.0.2", Blacklist: "dnsbl.dronebl.org", Mask: "evil!proxy@10.0.0.2", When: time.Unix(1307151200, 0).UTC()},
		{IP: "10.0.0.1", Blacklist: "rbl.efnetrbl.org", Mask: "bad!open@10.0.0.1", When: time.Unix(1307151100, 0).UTC()},
	}

	if err := SaveHits(tmpDir, hits); err != nil {
		t.Fatalf("SaveHits failed: %v", err)
	}

	loaded, err := LoadHits(tmpDir)
	if err != nil {
		t.Fatalf("LoadHits failed: %v", err)
	}

	if len(loaded) != len(hits) {
		t.Fatalf("Expected %d hits, got %d", len(hits), len(loaded))
	}

	// Should come back in the same order (newest first)
	for i := range hits {
		if loaded[i] != hits[i] {
			t.Errorf("Hit %d mismatch: expected %+v, got %+v", i, hits[i], loaded[i])
		}
	}
}

func TestHitsFileFormat(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "athena-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	hits := []Hit{
		{IP: "10.0.0.1", Blacklist: "rbl.efnetrbl.org", Mask: "bad!open@10.0.0.1", When: time.Unix(1307151100, 0).UTC()},
	}
	if err := SaveHits(tmpDir, hits); err != nil {
		t.Fatalf("SaveHits failed: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(tmpDir, "dnsbl.txt"))
	expected := "10.0.0.1\trbl.efnetrbl.org\tbad!open@10.0.0.1\t1307151100\n"
	if string(data) != expected {
		t.Errorf("Hit file format wrong: got %q", string(data))
	}
}

func TestLoadHitsMissing(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "athena-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	hits, err := LoadHits(tmpDir)
	if err != nil {
		t.Fatalf("LoadHits should not fail for missing file: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Expected no hits, got %d", len(hits))
	}
}

func TestLoadHitsSkipsMalformedLines(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "athena-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	content := "garbage line\n10.0.0.1\trbl.efnetrbl.org\tbad!open@10.0.0.1\t1307151100\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "dnsbl.txt"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	hits, err := LoadHits(tmpDir)
	if err != nil {
		t.Fatalf("LoadHits failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}
	if hits[0].IP != "10.0.0.1" {
		t.Errorf("Wrong hit survived: %+v", hits[0])
	}
}

func TestAddHit(t *testing.T) {
	hits := []Hit{{IP: "10.0.0.1"}, {IP: "10.0.0.2"}}
	hits = AddHit(hits, Hit{IP: "10.0.0.3"})

	if len(hits) != 3 {
		t.Errorf("Expected 3 hits, got %d", len(hits))
	}
	if hits[0].IP != "10.0.0.3" {
		t.Errorf("New hit should be first, got %q", hits[0].IP)
	}
}

func TestAddHitMaxEntries(t *testing.T) {
	hits := make([]Hit, 500)
	for i := range hits {
		hits[i] = Hit{IP: "10.0.0.1"}
	}

	hits = AddHit(hits, Hit{IP: "10.0.0.99"})

	if len(hits) != 500 {
		t.Errorf("Expected 500 hits (max), got %d", len(hits))
	}
	if hits[0].IP != "10.0.0.99" {
		t.Errorf("New hit should be first")
	}
}
