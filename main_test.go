package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadSnapshots(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "illidan.json")
	doc := `{"auctions": [{"id": 1, "item": {"id": 2589}, "quantity": 20, "buyout": 4000}], "lastModified": 1700000000000}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	realms, err := readSnapshots([]string{"57:illidan=" + path, "3=" + path})
	if err != nil {
		t.Fatalf("readSnapshots: %v", err)
	}
	if len(realms) != 2 {
		t.Fatalf("len = %d, want 2", len(realms))
	}
	if realms[0].RealmID != 57 || realms[0].Name != "illidan" || len(realms[0].Snapshot.Auctions) != 1 {
		t.Errorf("realms[0] = %+v", realms[0])
	}
	if realms[1].RealmID != 3 || realms[1].Name != "" {
		t.Errorf("realms[1] = %+v", realms[1])
	}
}

func TestReadSnapshots_Invalid(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.json")
	for _, arg := range []string{"57", "57=", "abc=" + missing, "0=" + missing, "57=" + missing} {
		if _, err := readSnapshots([]string{arg}); err == nil {
			t.Errorf("readSnapshots(%q) should fail", arg)
		}
	}
}
