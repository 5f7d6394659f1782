package bundle

import "testing"

func TestCreateListGetDelete(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := Create("daily", "db.internal", []Entry{
		{RemotePort: 5432},
		{RemotePort: 8080, LocalPort: 18080},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := LoadAll()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 1 || all[0].Name != "daily" || all[0].Destination != "db.internal" {
		t.Fatalf("unexpected bundles: %+v", all)
	}

	got, err := Get("daily")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(got.Entries))
	}
	if got.Entries[0].LocalPort != 5432 {
		t.Fatalf("expected zero local port normalized to remote port, got %+v", got.Entries[0])
	}
	if got.Entries[1].LocalPort != 18080 {
		t.Fatalf("expected explicit local port preserved, got %+v", got.Entries[1])
	}

	if err := Delete("daily"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err = LoadAll()
	if err != nil {
		t.Fatalf("load after delete: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no bundles, got %d", len(all))
	}
}

func TestCreateValidatesInput(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := Create("", "db", []Entry{{RemotePort: 5432}}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := Create("x", "", []Entry{{RemotePort: 5432}}); err == nil {
		t.Fatal("expected error for empty destination")
	}
	if err := Create("x", "db", nil); err == nil {
		t.Fatal("expected error for empty entries")
	}
	if err := Create("x", "db", []Entry{{RemotePort: 0}}); err == nil {
		t.Fatal("expected error for zero remote port")
	}
}
