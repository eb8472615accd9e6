package catalog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"terminbot/pkg/logx"
)

func TestParseCaseTypes(t *testing.T) {
	t.Parallel()
	page := []byte(`
		<input name="CASETYPES[FS Umschreibung Ausländischer FS]" value="0">
		<input name="CASETYPES[FS Neuerteilung]" value="0">
		<input name="CASETYPES[FS Umschreibung Ausländischer FS]" value="0">
		<input name="CASETYPES[WEB+INTERNAL]" value="0">
	`)

	got := parseCaseTypes(page)
	want := []string{"FS Umschreibung Ausländischer FS", "FS Neuerteilung"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseCaseTypes = %v, want %v", got, want)
	}
}

func TestParseCaseTypesEmpty(t *testing.T) {
	t.Parallel()
	if got := parseCaseTypes([]byte("<html>nothing here</html>")); len(got) != 0 {
		t.Fatalf("parseCaseTypes = %v, want none", got)
	}
}

func TestAvailableTypesCaching(t *testing.T) {
	t.Parallel()
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		io.WriteString(w, `<input name="CASETYPES[An- oder Ummeldung - Einzelperson]">`)
	}))
	defer srv.Close()

	dep := Department{ID: "bb", Name: "Bürgerbüro", FrameURL: srv.URL}
	s := New(NewRegistry(dep), logx.Nop())

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	first, err := s.AvailableTypes(ctx, dep)
	if err != nil {
		t.Fatalf("AvailableTypes error: %v", err)
	}
	if len(first) != 1 || first[0] != "An- oder Ummeldung - Einzelperson" {
		t.Fatalf("types = %v", first)
	}

	// within the TTL: served from cache
	if _, err := s.AvailableTypes(ctx, dep); err != nil {
		t.Fatalf("cached AvailableTypes error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("hits = %d, want 1 (second lookup cached)", hits)
	}

	// past the TTL: refetched
	now = now.Add(25 * time.Hour)
	if _, err := s.AvailableTypes(ctx, dep); err != nil {
		t.Fatalf("refreshed AvailableTypes error: %v", err)
	}
	if hits != 2 {
		t.Fatalf("hits = %d, want 2 after TTL expiry", hits)
	}
}

func TestAvailableTypesServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dep := Department{ID: "fs", FrameURL: srv.URL}
	s := New(NewRegistry(dep), logx.Nop())
	if _, err := s.AvailableTypes(context.Background(), dep); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := Defaults()

	for _, id := range []string{"fs", "bb", "abh", "kfz", "va"} {
		dep, ok := reg.ByID(id)
		if !ok {
			t.Fatalf("department %s missing", id)
		}
		if dep.FrameURL == "" || dep.Name == "" {
			t.Fatalf("department %s incomplete: %+v", id, dep)
		}
	}
	if _, ok := reg.ByID("nope"); ok {
		t.Fatal("unexpected department")
	}
	if got := len(reg.Departments()); got != 5 {
		t.Fatalf("departments = %d, want 5", got)
	}
}

func TestRegistryDropsDuplicateIDs(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(
		Department{ID: "x", Name: "first"},
		Department{ID: "x", Name: "second"},
	)
	dep, ok := reg.ByID("x")
	if !ok || dep.Name != "first" {
		t.Fatalf("ByID = (%+v, %v), want the first registration", dep, ok)
	}
	if len(reg.Departments()) != 1 {
		t.Fatalf("departments = %d, want 1", len(reg.Departments()))
	}
}
