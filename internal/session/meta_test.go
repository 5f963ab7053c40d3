package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ferndale/homewatch/internal/infrastructure/database"
	"github.com/ferndale/homewatch/internal/view"
)

// MockMeta implements MetaRepository in memory.
type MockMeta struct {
	values map[string]string
}

func (m *MockMeta) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MockMeta) Set(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func TestStartRestoresViewState(t *testing.T) {
	meta := &MockMeta{values: map[string]string{
		metaKeyFilter: "climate",
		metaKeyGroup:  "type",
	}}

	s, err := New(Deps{Config: testSessionConfig(), Meta: meta})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Close()

	cfg := s.ViewConfig()
	if cfg.Filter != view.FilterDomains {
		t.Errorf("restored filter = %q, want %q", cfg.Filter, view.FilterDomains)
	}
	if cfg.Group != view.GroupType {
		t.Errorf("restored group = %q, want %q", cfg.Group, view.GroupType)
	}
}

func TestStartIgnoresInvalidPersistedState(t *testing.T) {
	meta := &MockMeta{values: map[string]string{metaKeyGroup: "alphabetical"}}

	s, err := New(Deps{Config: testSessionConfig(), Meta: meta})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Close()

	if got := s.ViewConfig().Group; got != view.GroupNone {
		t.Errorf("group = %q, want configured %q after invalid persisted value", got, view.GroupNone)
	}
}

func TestViewCommandsPersist(t *testing.T) {
	meta := &MockMeta{}

	s, err := New(Deps{Config: testSessionConfig(), Meta: meta})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Close()

	if err := s.SetFilter("favorites"); err != nil {
		t.Fatalf("SetFilter() error = %v", err)
	}
	if err := s.SetGroup("room"); err != nil {
		t.Fatalf("SetGroup() error = %v", err)
	}

	if meta.values[metaKeyFilter] != "favorites" {
		t.Errorf("persisted filter = %q, want favorites", meta.values[metaKeyFilter])
	}
	if meta.values[metaKeyGroup] != "room" {
		t.Errorf("persisted group = %q, want room", meta.values[metaKeyGroup])
	}

	// Rejected commands must not overwrite the persisted state.
	if err := s.SetGroup("bogus"); err == nil {
		t.Fatal("SetGroup() expected error")
	}
	if meta.values[metaKeyGroup] != "room" {
		t.Errorf("persisted group = %q after rejected command, want room", meta.values[metaKeyGroup])
	}
}

func TestSQLiteMetaRepository(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "meta.db"),
		WALMode:     true,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	repo := NewSQLiteMetaRepository(db.DB)

	if _, ok, err := repo.Get(ctx, metaKeyFilter); err != nil || ok {
		t.Fatalf("Get() on empty table = ok %v, err %v", ok, err)
	}

	if err := repo.Set(ctx, metaKeyFilter, "all"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(ctx, metaKeyFilter, "favorites"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	value, ok, err := repo.Get(ctx, metaKeyFilter)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || value != "favorites" {
		t.Errorf("Get() = %q, %v; want favorites, true", value, ok)
	}
}
