package document

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
)

type mockStore struct {
	items []*db.Item
	err   error
}

func (m *mockStore) UpsertDocument(_ context.Context, item *db.Item) error {
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, item)
	return nil
}

const movieDoc = `{
  "id": "m-1",
  "type": "movie",
  "title": "Heat",
  "rating": 8.3,
  "release_year": 1995,
  "description": "A heist.",
  "partKey": "1995",
  "cast": ["Pacino", "De Niro"],
  "embedding": [
    0.1,
    0.2
  ]
}`

func TestStoreSink_Write(t *testing.T) {
	ms := &mockStore{}
	sink := NewStoreSink(ms, 2, zap.NewNop())

	if err := sink.Write(context.Background(), "heat.json", []byte(movieDoc), []float32{0.1, 0.2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms.items) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(ms.items))
	}

	item := ms.items[0]
	if item.ID != "m-1" || item.PartitionKey != "1995" {
		t.Errorf("unexpected identity: id=%q partition=%q", item.ID, item.PartitionKey)
	}
	d := item.Document
	if d.Type != "movie" || d.Title != "Heat" || d.ReleaseYear != 1995 || d.Rating == nil || *d.Rating != 8.3 {
		t.Errorf("unexpected projection: %+v", d)
	}

	var body map[string]any
	if err := json.Unmarshal(item.Body, &body); err != nil {
		t.Fatalf("body is not JSON: %v\n%s", err, item.Body)
	}
	if _, ok := body[domain.EmbeddingField]; ok {
		t.Error("body must not keep the embedding key")
	}
	vec, ok := body[domain.VectorField].([]any)
	if !ok || len(vec) != 2 {
		t.Errorf("expected docVector with 2 values, got %v", body[domain.VectorField])
	}
	if cast, ok := body["cast"].([]any); !ok || len(cast) != 2 {
		t.Errorf("unrelated fields must be kept, got %v", body["cast"])
	}
}

func TestStoreSink_DoesNotMutateInput(t *testing.T) {
	sink := NewStoreSink(&mockStore{}, 0, zap.NewNop())
	in := []byte(movieDoc)

	if err := sink.Write(context.Background(), "heat.json", in, []float32{0.1, 0.2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(in) != movieDoc {
		t.Error("input document was modified")
	}
}

func TestStoreSink_IDFromFileName(t *testing.T) {
	ms := &mockStore{}
	sink := NewStoreSink(ms, 0, zap.NewNop())

	doc := `{"resourceType":"Patient","partKey":7}`
	if err := sink.Write(context.Background(), "patient-42.json", []byte(doc), []float32{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item := ms.items[0]
	if item.ID != "patient-42" {
		t.Errorf("expected id from file name, got %q", item.ID)
	}
	if item.PartitionKey != "7" {
		t.Errorf("numeric partition must render as text, got %q", item.PartitionKey)
	}

	id, err := jsonID(item.Body)
	if err != nil || id != "patient-42" {
		t.Errorf("body id: %q, %v", id, err)
	}
}

func jsonID(body []byte) (string, error) {
	var v struct {
		ID string `json:"id"`
	}
	err := json.Unmarshal(body, &v)
	return v.ID, err
}

func TestStoreSink_DimensionMismatch(t *testing.T) {
	ms := &mockStore{}
	sink := NewStoreSink(ms, 3, zap.NewNop())

	err := sink.Write(context.Background(), "heat.json", []byte(movieDoc), []float32{0.1, 0.2})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
	if len(ms.items) != 0 {
		t.Error("mismatched vector must not be stored")
	}
}

func TestStoreSink_StoreErrorKeepsCode(t *testing.T) {
	ms := &mockStore{err: &db.Error{Op: db.OpUpsert, Code: "Conflict", Err: errors.New("etag mismatch")}}
	sink := NewStoreSink(ms, 0, zap.NewNop())

	err := sink.Write(context.Background(), "heat.json", []byte(movieDoc), []float32{0.1, 0.2})
	var qe *domain.QueryExecutionError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryExecutionError, got %v", err)
	}
	if qe.Code != "Conflict" || qe.Op != db.OpUpsert {
		t.Errorf("unexpected error details: %+v", qe)
	}
	if domain.ErrorKind(err) != domain.KindQueryExecution {
		t.Errorf("unexpected kind %q", domain.ErrorKind(err))
	}
}

func TestScalar(t *testing.T) {
	doc := []byte(`{"s":"a\"b","n":12.5,"b":true,"o":{"x":1},"nil":null}`)
	tests := []struct {
		key  string
		want string
	}{
		{"s", `a"b`},
		{"n", "12.5"},
		{"b", "true"},
		{"o", ""},
		{"nil", ""},
		{"missing", ""},
	}
	for _, tc := range tests {
		if got := scalar(doc, tc.key); got != tc.want {
			t.Errorf("scalar(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestStoreBody_KeepsMembersVerbatim(t *testing.T) {
	doc := []byte(`{"q\"k": "xé", "n": 1.50, "nested": {"embedding": [1]}, "id": "old", "embedding": [0.5]}`)

	body, err := storeBody(doc, "new", []float32{0.25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"q\"k":"xé","n":1.50,"nested":{"embedding": [1]},"id":"new","docVector":[0.25]}`
	if string(body) != want {
		t.Errorf("got  %s\nwant %s", body, want)
	}
}
