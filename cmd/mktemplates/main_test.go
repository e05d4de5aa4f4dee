package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/docmcp/registry"
	"github.com/hazyhaar/docmcp/render"
	"github.com/hazyhaar/docmcp/schema"
)

func TestWrite_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	written, err := write(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 4 {
		t.Fatalf("written = %v", written)
	}
	again, err := write(dir, false)
	if err != nil || len(again) != 0 {
		t.Fatalf("second run wrote %v (%v)", again, err)
	}
	forced, err := write(dir, true)
	if err != nil || len(forced) != 4 {
		t.Fatalf("forced run wrote %v (%v)", forced, err)
	}
}

func TestTemplates_MatchMetadata(t *testing.T) {
	// WHAT: every bundled template renders from generated sample data and
	// references only fields the metadata declares.
	dir := t.TempDir()
	if _, err := write(dir, false); err != nil {
		t.Fatal(err)
	}
	store := schema.NewStore(filepath.Join("..", "..", "templates_metadata.json"))
	reg := registry.New()
	now := time.Date(2025, 1, 28, 10, 0, 0, 0, time.UTC)
	r := render.New(render.Config{
		TemplateDir: dir,
		OutputDir:   filepath.Join(dir, "out"),
		Now:         func() time.Time { return now },
	}, reg)

	for name := range templates() {
		entry, err := store.Lookup(name)
		if err != nil || entry == nil {
			t.Fatalf("%s: no metadata (%v)", name, err)
		}
		vars, err := r.ScanVariables(name)
		if err != nil {
			t.Fatal(err)
		}
		for _, v := range vars {
			if _, _, ok := entry.Lookup(v); !ok {
				t.Errorf("%s: template uses undeclared field %q", name, v)
			}
		}
		for _, locale := range []string{"en", "zh"} {
			data := schema.Sample(name, entry, locale, now)
			entry.FillOptional(data)
			if _, err := r.Render(context.Background(), name, data, name+"_"+locale); err != nil {
				t.Errorf("%s/%s: %v", name, locale, err)
			}
		}
	}
	if reg.Len() != 8 {
		t.Errorf("rendered %d documents", reg.Len())
	}
}
