package history

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"luckydraw/internal/models"
	"luckydraw/internal/storage"
)

type failingSlot struct {
	getErr error
	setErr error
}

func (f *failingSlot) Get(context.Context, string) (string, bool, error) {
	return "", false, f.getErr
}

func (f *failingSlot) Set(context.Context, string, string) error {
	return f.setErr
}

func record(prize string, n int) models.DrawRecord {
	return models.DrawRecord{
		Prize:   prize,
		Seed:    strconv.Itoa(n),
		Date:    "2024-01-01 00:00:00",
		Winners: []string{"w" + strconv.Itoa(n)},
	}
}

func TestStore_AppendKeepsNewestTen(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemory().Slot("t")
	store := New(slot)

	for i := 1; i <= 15; i++ {
		if err := store.Append(ctx, record("p", i)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
		if store.Len() > MaxRecords {
			t.Fatalf("Expected at most %d records, but got %d", MaxRecords, store.Len())
		}
	}

	records := store.Records()
	if len(records) != MaxRecords {
		t.Fatalf("Expected %d records, but got %d", MaxRecords, len(records))
	}
	for i, r := range records {
		want := strconv.Itoa(15 - i)
		if r.Seed != want {
			t.Errorf("record %d: expected seed %s, but got %s", i, want, r.Seed)
		}
	}

	// The persisted copy matches after a reload.
	reloaded := New(slot)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := reloaded.Records(); len(got) != MaxRecords || got[0].Seed != "15" || got[9].Seed != "6" {
		t.Errorf("Unexpected reloaded history: %+v", got)
	}
}

func TestStore_LoadCorruptDataYieldsEmptyLog(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemory().Slot("t")
	if err := slot.Set(ctx, storage.KeyHistory, "{not json"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	store := New(slot)
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty log, but got %d records", store.Len())
	}
}

func TestStore_LoadFormats(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"plain array", `[{"prize":"a","seed":"1","date":"d","winners":["x"],"allowRepeat":true}]`, 1},
		{"versioned envelope", `{"version":1,"records":[{"prize":"a"},{"prize":"b"}]}`, 2},
		{"unknown version", `{"version":7,"records":[{"prize":"a"}]}`, 0},
		{"json null", `null`, 0},
		{"wrong shape", `{"prize":"a"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := storage.NewMemory().Slot("t")
			_ = slot.Set(ctx, storage.KeyHistory, tt.raw)

			store := New(slot)
			if err := store.Load(ctx); err != nil {
				t.Fatalf("Expected no error, but got %v", err)
			}
			if store.Len() != tt.want {
				t.Errorf("Expected %d records, but got %d", tt.want, store.Len())
			}
		})
	}
}

func TestStore_LoadStorageFailure(t *testing.T) {
	boom := errors.New("boom")
	store := New(&failingSlot{getErr: boom})
	if err := store.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Expected storage error, but got %v", err)
	}
}

func TestStore_FailedPersistLeavesLogUnchanged(t *testing.T) {
	ctx := context.Background()
	slot := &failingSlot{}
	store := New(slot)

	if err := store.Append(ctx, record("p", 1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	slot.setErr = errors.New("disk full")
	if err := store.Append(ctx, record("p", 2)); err == nil {
		t.Fatal("Expected an error, but got nil")
	}
	if err := store.Clear(ctx); err == nil {
		t.Fatal("Expected an error, but got nil")
	}

	if got := store.Records(); len(got) != 1 || got[0].Seed != "1" {
		t.Errorf("Expected the original single record, but got %+v", got)
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemory().Slot("t")
	store := New(slot)
	_ = store.Append(ctx, record("p", 1))

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty log, but got %d", store.Len())
	}
	raw, _, _ := slot.Get(ctx, storage.KeyHistory)
	if raw != "[]" {
		t.Errorf("Expected persisted [], but got %q", raw)
	}
}

func TestStore_FilterAndPrizes(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemory().Slot("t"))
	_ = store.Append(ctx, record("頭獎", 1))
	_ = store.Append(ctx, record("二獎", 2))
	_ = store.Append(ctx, record("頭獎", 3))

	if got := store.Filter(FilterAll); len(got) != 3 {
		t.Errorf("Expected 3 records, but got %d", len(got))
	}
	got := store.Filter("頭獎")
	if len(got) != 2 || got[0].Seed != "3" || got[1].Seed != "1" {
		t.Errorf("Unexpected filtered records: %+v", got)
	}
	if got := store.Filter("三獎"); len(got) != 0 {
		t.Errorf("Expected no records, but got %d", len(got))
	}

	prizes := store.Prizes()
	if len(prizes) != 2 || prizes[0] != "頭獎" || prizes[1] != "二獎" {
		t.Errorf("Unexpected prizes: %v", prizes)
	}
}

func TestPaginate(t *testing.T) {
	list := make([]int, 12)
	for i := range list {
		list[i] = i
	}

	if got := Paginate(list, 1, PageSize); len(got) != 5 || got[0] != 0 {
		t.Errorf("page 1: unexpected %v", got)
	}
	if got := Paginate(list, 3, PageSize); len(got) != 2 || got[0] != 10 {
		t.Errorf("page 3: unexpected %v", got)
	}
	if got := Paginate(list, 4, PageSize); len(got) != 0 {
		t.Errorf("page 4: expected empty, got %v", got)
	}
	if got := Paginate(list, 0, PageSize); len(got) != 0 {
		t.Errorf("page 0: expected empty, got %v", got)
	}
	if got := PageCount(len(list), PageSize); got != 3 {
		t.Errorf("Expected 3 pages, but got %d", got)
	}
	if got := PageCount(0, PageSize); got != 0 {
		t.Errorf("Expected 0 pages, but got %d", got)
	}
}

func TestStore_SelectPage(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemory().Slot("t"))
	for i := 1; i <= 7; i++ {
		_ = store.Append(ctx, record("p", i))
	}

	page := store.SelectPage(FilterAll, 2)
	if len(page.Records) != 2 || page.TotalPages != 2 || page.Total != 7 {
		t.Errorf("Unexpected page: %+v", page)
	}

	page = store.SelectPage(FilterAll, -3)
	if page.Page != 1 || len(page.Records) != 5 {
		t.Errorf("Expected page 1 with 5 records, but got %+v", page)
	}
}
