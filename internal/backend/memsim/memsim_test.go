package memsim

import (
	"context"
	"testing"

	"github.com/fieldmesh/tscore/internal/backend"
)

func TestMutateThenGet(t *testing.T) {
	b := New()
	ctx := context.Background()
	_, err := b.MutateRows(ctx, []backend.Mutation{
		{RowKey: "r1", Cells: []backend.Cell{{Family: "f", Qualifier: "q1", Value: []byte("v1")}}},
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	rows, err := b.GetRows(ctx, []string{"r1", "missing"}, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rows) != 1 || rows[0].Key != "r1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestKeepLatestOverwrite(t *testing.T) {
	b := New()
	ctx := context.Background()
	mut := backend.Mutation{RowKey: "r1", Cells: []backend.Cell{{Family: "f", Qualifier: "q1", Value: []byte("v1")}}}
	b.MutateRows(ctx, []backend.Mutation{mut})
	mut.Cells[0].Value = []byte("v2")
	b.MutateRows(ctx, []backend.Mutation{mut})
	rows, _ := b.GetRows(ctx, []string{"r1"}, nil)
	if string(rows[0].Cells[0].Value) != "v2" {
		t.Fatalf("expected latest version to win, got %s", rows[0].Cells[0].Value)
	}
}

func TestScanOrderingAndLimit(t *testing.T) {
	b := New()
	ctx := context.Background()
	for _, k := range []string{"b#1", "a#1", "c#1"} {
		b.MutateRows(ctx, []backend.Mutation{{RowKey: k, Cells: []backend.Cell{{Family: "f", Qualifier: "q", Value: []byte("x")}}}})
	}
	rows, err := b.Scan(ctx, backend.ScanOptions{StartKey: "", RowLimit: 2})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 2 || rows[0].Key != "a#1" || rows[1].Key != "b#1" {
		t.Fatalf("unexpected scan order/limit: %+v", rows)
	}
}

func TestDeleteColumnsRestrictedToFamily(t *testing.T) {
	b := New()
	ctx := context.Background()
	b.MutateRows(ctx, []backend.Mutation{{RowKey: "r1", Cells: []backend.Cell{
		{Family: "f1", Qualifier: "q", Value: []byte("x")},
		{Family: "f2", Qualifier: "q", Value: []byte("y")},
	}}})
	b.DeleteColumns(ctx, []backend.ColumnDelete{{RowKey: "r1", Families: []string{"f1"}}})
	rows, _ := b.GetRows(ctx, []string{"r1"}, nil)
	if len(rows[0].Cells) != 1 || rows[0].Cells[0].Family != "f2" {
		t.Fatalf("expected only f2 to survive, got %+v", rows[0].Cells)
	}
}

func TestIncrementCounterAutoInit(t *testing.T) {
	b := New()
	ctx := context.Background()
	v, err := b.IncrementCounter(ctx, "r1", "c", "07.dev1", 3)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if v != 3 {
		t.Fatalf("expected 3, got %d", v)
	}
	v, _ = b.IncrementCounter(ctx, "r1", "c", "07.dev1", 4)
	if v != 7 {
		t.Fatalf("expected 7 after second incr, got %d", v)
	}
}

func TestContextCancellation(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.GetRows(ctx, []string{"r1"}, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
