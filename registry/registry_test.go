package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestAdd_MintsShortID(t *testing.T) {
	clock := time.Date(2025, 1, 28, 9, 30, 0, 0, time.UTC)
	r := New(WithClock(func() time.Time { return clock }))

	rec, err := r.Add(Record{ID: "ignored", Filename: "a.docx", Path: "/tmp/a.docx", Template: "invoice", Size: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.ID) != 8 || rec.ID == "ignored" {
		t.Fatalf("id = %q", rec.ID)
	}
	if !rec.Created.Equal(clock) {
		t.Fatalf("created = %v", rec.Created)
	}
	got, ok := r.Get(rec.ID)
	if !ok || got.Filename != "a.docx" {
		t.Fatalf("get: %+v ok=%v", got, ok)
	}
}

func TestAdd_RegeneratesOnCollision(t *testing.T) {
	ids := []string{"aaaa", "aaaa", "bbbb"}
	i := 0
	r := New(WithIDGenerator(func() string { id := ids[i]; i++; return id }))

	first, _ := r.Add(Record{Path: "p1"})
	second, err := r.Add(Record{Path: "p2"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "aaaa" || second.ID != "bbbb" {
		t.Fatalf("ids: %q %q", first.ID, second.ID)
	}
}

func TestAdd_NeverReusesDeletedID(t *testing.T) {
	ids := []string{"aaaa", "aaaa", "bbbb"}
	i := 0
	r := New(WithIDGenerator(func() string { id := ids[i]; i++; return id }))

	first, _ := r.Add(Record{Path: filepath.Join(t.TempDir(), "gone.docx")})
	if _, err := r.Delete(first.ID); err != nil {
		t.Fatal(err)
	}
	second, err := r.Add(Record{Path: "p2"})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != "bbbb" {
		t.Fatalf("deleted id %q reissued as %q", first.ID, second.ID)
	}
}

func TestAdd_GivesUpAfterRepeatedCollisions(t *testing.T) {
	r := New(WithIDGenerator(func() string { return "same" }))
	r.Add(Record{Path: "p1"})
	if _, err := r.Add(Record{Path: "p2"}); err == nil {
		t.Fatal("expected error when every id collides")
	}
}

func TestList_SkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	r := New()
	kept, _ := r.Add(Record{Filename: "kept.docx", Path: touch(t, dir, "kept.docx")})
	gone, _ := r.Add(Record{Filename: "gone.docx", Path: touch(t, dir, "gone.docx")})
	os.Remove(gone.Path)

	list := r.List()
	if len(list) != 1 || list[0].ID != kept.ID {
		t.Fatalf("list: %+v", list)
	}
	// Stale record is skipped, not purged.
	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
	if _, ok := r.Get(gone.ID); !ok {
		t.Fatal("stale record should still be retrievable")
	}
}

func TestList_InsertionOrder(t *testing.T) {
	dir := t.TempDir()
	r := New()
	var want []string
	for _, name := range []string{"c.docx", "a.docx", "b.docx"} {
		rec, _ := r.Add(Record{Filename: name, Path: touch(t, dir, name)})
		want = append(want, rec.ID)
	}
	for i, rec := range r.List() {
		if rec.ID != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, rec.ID, want[i])
		}
	}
}

func TestDelete_Twice(t *testing.T) {
	dir := t.TempDir()
	r := New()
	rec, _ := r.Add(Record{Filename: "x.docx", Path: touch(t, dir, "x.docx")})

	got, err := r.Delete(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "x.docx" {
		t.Fatalf("deleted record: %+v", got)
	}
	if _, err := os.Stat(rec.Path); !os.IsNotExist(err) {
		t.Fatalf("file should be removed: %v", err)
	}

	if _, err := r.Delete(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v, want ErrNotFound", err)
	}
}

func TestDelete_FileAlreadyGone(t *testing.T) {
	r := New()
	rec, _ := r.Add(Record{Path: filepath.Join(t.TempDir(), "never-written.docx")})
	if _, err := r.Delete(rec.ID); err != nil {
		t.Fatalf("delete with absent file: %v", err)
	}
	if r.Len() != 0 {
		t.Fatal("record should be removed")
	}
}

func TestConcurrentAddDelete(t *testing.T) {
	dir := t.TempDir()
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := filepath.Join(dir, "f"+string(rune('a'+i%26))+".docx")
			rec, err := r.Add(Record{Path: p})
			if err != nil {
				t.Error(err)
				return
			}
			r.List()
			r.Delete(rec.ID)
		}(i)
	}
	wg.Wait()
	if r.Len() != 0 {
		t.Fatalf("len = %d after concurrent add/delete", r.Len())
	}
}
