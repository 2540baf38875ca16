package embedding

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/db"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/db/valkey"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
)

// --- EnsureIndex ---

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	repo, ms := newTestRepo(t)

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected CreateIndex to be called")
	}
	if created.Name != "xignal:primary_embed_a:idx" {
		t.Errorf("unexpected index name: %s", created.Name)
	}
	if !reflect.DeepEqual(created.Prefixes, []string{"xignal:emb:"}) {
		t.Errorf("unexpected prefixes: %v", created.Prefixes)
	}
	if len(created.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(created.Fields))
	}
	vf := created.Fields[1]
	if vf.Name != "primary_embed_a" || vf.VectorDim != 768 || vf.VectorDistance != db.DistanceCosine {
		t.Errorf("unexpected vector field: %+v", vf)
	}
	if vf.VectorM != 16 || vf.VectorEFConstruct != 200 {
		t.Errorf("unexpected HNSW params: M=%d EF=%d", vf.VectorM, vf.VectorEFConstruct)
	}
}

func TestEnsureIndex_CustomHNSW(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo.WithHNSW(HNSWConfig{M: 32})

	var vf db.IndexField
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		vf = def.Fields[1]
		return nil
	}
	if err := repo.EnsureIndex(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vf.VectorM != 32 || vf.VectorEFConstruct != 200 {
		t.Errorf("unexpected HNSW params: M=%d EF=%d", vf.VectorM, vf.VectorEFConstruct)
	}
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		t.Fatal("CreateIndex must not be called for an existing index")
		return nil
	}

	if err := repo.EnsureIndex(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_RaceOnCreate(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error { return db.ErrIndexExists }

	if err := repo.EnsureIndex(context.Background(), 4); err != nil {
		t.Fatalf("expected ErrIndexExists to be tolerated, got %v", err)
	}
}

func TestEnsureIndex_InvalidDimension(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.EnsureIndex(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

// --- Put / Fetch / All ---

func TestPut_EncodesPresentVectorsOnly(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotKey string
	var gotFields map[string]string
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		gotKey, gotFields = key, fields
		return nil
	}

	rec := entity.EmbeddingRecord{PrimaryA: []float32{1, 2}}
	if err := repo.Put(context.Background(), "TSLA", rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "xignal:emb:TSLA" {
		t.Errorf("unexpected key: %s", gotKey)
	}
	if len(gotFields) != 2 {
		t.Fatalf("expected symbol + one vector field, got %v", gotFields)
	}
	if gotFields["symbol"] != "TSLA" {
		t.Errorf("unexpected symbol field: %q", gotFields["symbol"])
	}
	if gotFields["primary_embed_a"] != valkey.VectorToBytes([]float32{1, 2}) {
		t.Error("unexpected primary_embed_a encoding")
	}
}

func TestPutMany_Pipelines(t *testing.T) {
	repo, ms := newTestRepo(t)

	var n int
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		n = len(items)
		return nil
	}

	err := repo.PutMany(context.Background(), map[string]entity.EmbeddingRecord{
		"TSLA": completeRecord(1),
		"F":    completeRecord(2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pipelined items, got %d", n)
	}
}

func TestAll_DecodesRecords(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "xignal:emb:*" {
			t.Errorf("unexpected pattern: %s", pattern)
		}
		return []string{"xignal:emb:TSLA", "xignal:emb:F", "xignal:emb:GONE"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		return []map[string]string{
			recordToHash("TSLA", completeRecord(1)),
			{"primary_embed_a": valkey.VectorToBytes([]float32{9, 9})},
			{},
		}, nil
	}

	recs, err := repo.All(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if !reflect.DeepEqual(recs["TSLA"], completeRecord(1)) {
		t.Errorf("unexpected TSLA record: %+v", recs["TSLA"])
	}
	f := recs["F"]
	if f.Complete() || f.PrimaryA[0] != 9 {
		t.Errorf("expected partial F record recovered from key, got %+v", f)
	}
}

func TestFetch_Empty(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		t.Fatal("no round trip expected for empty input")
		return nil, nil
	}

	recs, err := repo.Fetch(context.Background(), nil)
	if err != nil || len(recs) != 0 {
		t.Fatalf("expected empty result, got %v, %v", recs, err)
	}
}

func TestFetch_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		return nil, errors.New("connection lost")
	}

	if _, err := repo.Fetch(context.Background(), []string{"TSLA"}); err == nil {
		t.Fatal("expected error")
	}
}

// --- Nearest ---

func TestNearest(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "xignal:primary_embed_a:idx" || q.VectorField != "primary_embed_a" || q.K != 15 {
			t.Errorf("unexpected query: %+v", q)
		}
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: "xignal:emb:TSLA", Score: 0.9, Fields: map[string]string{"symbol": "TSLA"}},
			{Key: "xignal:emb:F", Score: 0.7, Fields: map[string]string{}},
		}}, nil
	}

	got, err := repo.Nearest(context.Background(), []float32{1, 0}, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []entity.Neighbor{{Symbol: "TSLA", Similarity: 0.9}, {Symbol: "F", Similarity: 0.7}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestNearest_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("no such index")}
	}

	if _, err := repo.Nearest(context.Background(), []float32{1}, 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestFieldName(t *testing.T) {
	if got := FieldName(domain.ProfileSecondary, domain.SpaceB); got != "secondary_embed_b" {
		t.Fatalf("unexpected field name: %s", got)
	}
}
