package audit

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/docmcp/dbopen"
	"github.com/hazyhaar/docmcp/kit"
)

func newLogger(t *testing.T, opts ...Option) *SQLiteLogger {
	t.Helper()
	db := dbopen.OpenMemory(t)
	l := NewSQLiteLogger(db, opts...)
	if err := l.Init(); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestSQLiteLogger_Log_Sync(t *testing.T) {
	l := newLogger(t)
	defer l.Close()

	entry := &Entry{Operation: "list_templates", Parameters: `{}`}
	if err := l.Log(context.Background(), entry); err != nil {
		t.Fatal(err)
	}

	// WHAT: defaults are filled in place.
	if !strings.HasPrefix(entry.EntryID, "aud_") {
		t.Fatalf("entry_id: %q", entry.EntryID)
	}
	if entry.Timestamp == 0 || entry.Status != "success" || entry.Transport != "inproc" {
		t.Fatalf("defaults: %+v", entry)
	}

	got, err := l.Query(context.Background(), Filter{Operation: "list_templates"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].EntryID != entry.EntryID {
		t.Fatalf("query: %+v", got)
	}
}

func TestSQLiteLogger_Status(t *testing.T) {
	l := newLogger(t)
	defer l.Close()
	ctx := context.Background()

	cases := []struct {
		entry Entry
		want  string
	}{
		{Entry{Operation: "a"}, "success"},
		{Entry{Operation: "b", Outcome: "not_found"}, "rejected"},
		{Entry{Operation: "c", Outcome: "error", Error: "boom"}, "error"},
	}
	for _, c := range cases {
		e := c.entry
		if err := l.Log(ctx, &e); err != nil {
			t.Fatal(err)
		}
		if e.Status != c.want {
			t.Errorf("%s: status %q, want %q", e.Operation, e.Status, c.want)
		}
	}

	rejected, err := l.Query(ctx, Filter{Status: "rejected"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rejected) != 1 || rejected[0].Operation != "b" {
		t.Fatalf("rejected: %+v", rejected)
	}
}

func TestSQLiteLogger_WithIDGenerator(t *testing.T) {
	l := newLogger(t, WithIDGenerator(func() string { return "custom_id" }))
	defer l.Close()

	entry := &Entry{Operation: "custom_gen"}
	l.Log(context.Background(), entry)
	if entry.EntryID != "custom_id" {
		t.Fatalf("custom ID: got %q", entry.EntryID)
	}
}

func TestSQLiteLogger_BatchFlush(t *testing.T) {
	l := newLogger(t)
	for i := 0; i < 50; i++ {
		l.LogAsync(&Entry{Operation: "batch_test"})
	}
	// Close drains whatever the batches have not written yet.
	l.Close()

	got, err := l.Query(context.Background(), Filter{Operation: "batch_test", Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 50 {
		t.Fatalf("batch count: got %d, want 50", len(got))
	}
}

type classified string

func (c classified) ErrorKind() string { return string(c) }

func TestMiddleware(t *testing.T) {
	l := newLogger(t)

	ok := Middleware(l, "parse_pdf_document")(func(context.Context, any) (any, error) {
		return classified("invalid_range"), nil
	})
	errFail := errors.New("endpoint failed")
	fail := Middleware(l, "generate_document")(func(context.Context, any) (any, error) {
		return nil, errFail
	})

	ctx := kit.WithRequestID(kit.WithTransport(context.Background(), "stdio"), "req_abc")
	if _, err := ok(ctx, map[string]any{"pages": "x"}); err != nil {
		t.Fatal(err)
	}
	big := map[string]any{"context_data": strings.Repeat("x", 5000)}
	if _, err := fail(ctx, big); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v", err)
	}
	l.Close()

	entries, err := l.Query(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	byOp := map[string]Entry{}
	for _, e := range entries {
		byOp[e.Operation] = e
	}

	pdf := byOp["parse_pdf_document"]
	if pdf.Status != "rejected" || pdf.Outcome != "invalid_range" || pdf.Transport != "stdio" ||
		pdf.RequestID != "req_abc" || pdf.Parameters != `{"pages":"x"}` {
		t.Errorf("pdf entry: %+v", pdf)
	}
	gen := byOp["generate_document"]
	if gen.Status != "error" || gen.Error != "endpoint failed" || len(gen.Parameters) != maxParams {
		t.Errorf("generate entry: status=%q error=%q params=%d", gen.Status, gen.Error, len(gen.Parameters))
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.db")
	l, db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	l.LogAsync(&Entry{Operation: "list_documents"})
	l.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rows = %d", n)
	}
}
