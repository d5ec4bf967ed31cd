package cosmos

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/query"
	"github.com/kailas-cloud/docvec/internal/domain/search/strategy"
)

// --- fakes ---

type fakeContainer struct {
	pages    [][][]byte
	pageErr  error
	fetched  int
	query    string
	pk       azcosmos.PartitionKey
	opts     *azcosmos.QueryOptions
	upserted []byte
	upsertPK azcosmos.PartitionKey
	err      error
}

func (f *fakeContainer) Read(context.Context, *azcosmos.ReadContainerOptions) (azcosmos.ContainerResponse, error) {
	return azcosmos.ContainerResponse{}, f.err
}

func (f *fakeContainer) NewQueryItemsPager(
	q string, pk azcosmos.PartitionKey, o *azcosmos.QueryOptions,
) *runtime.Pager[azcosmos.QueryItemsResponse] {
	f.query, f.pk, f.opts = q, pk, o
	return runtime.NewPager(runtime.PagingHandler[azcosmos.QueryItemsResponse]{
		More: func(azcosmos.QueryItemsResponse) bool {
			return f.fetched < len(f.pages)
		},
		Fetcher: func(context.Context, *azcosmos.QueryItemsResponse) (azcosmos.QueryItemsResponse, error) {
			if f.pageErr != nil {
				return azcosmos.QueryItemsResponse{}, f.pageErr
			}
			page := f.pages[f.fetched]
			f.fetched++
			return azcosmos.QueryItemsResponse{Items: page}, nil
		},
	})
}

func (f *fakeContainer) UpsertItem(
	_ context.Context, pk azcosmos.PartitionKey, item []byte, _ *azcosmos.ItemOptions,
) (azcosmos.ItemResponse, error) {
	f.upserted, f.upsertPK = item, pk
	return azcosmos.ItemResponse{}, f.err
}

func mustQuery(t *testing.T, st strategy.Strategy, limit int, partition string, opts ...query.Option) query.SearchQuery {
	t.Helper()
	q, err := query.Build(st, []float32{0.5, -0.25}, limit, partition, opts...)
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	return q
}

// --- query.go tests ---

func TestBuildQuery_Unordered(t *testing.T) {
	text, params := buildQuery(mustQuery(t, strategy.Unordered, 5, ""), domain.DefaultPartitionField)

	want := "SELECT TOP @limit c.id, c.type, c.title, c.rating, c.release_year, c.description, c.partKey, " +
		"VectorDistance(c.docVector, @embedding) AS similarityScore FROM c"
	if text != want {
		t.Errorf("query:\n got %q\nwant %q", text, want)
	}
	if len(params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(params))
	}
	if params[0].Name != "@limit" || params[0].Value != 5 {
		t.Errorf("unexpected limit param: %+v", params[0])
	}
	vec, ok := params[1].Value.([]float32)
	if !ok || len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("vector not bound as parameter: %+v", params[1])
	}
}

func TestBuildQuery_Ordered(t *testing.T) {
	text, _ := buildQuery(mustQuery(t, strategy.Ordered, 5, ""), domain.DefaultPartitionField)
	if !strings.HasSuffix(text, "FROM c ORDER BY VectorDistance(c.docVector, @embedding)") {
		t.Errorf("missing ORDER BY: %q", text)
	}
	if strings.Contains(text, "WHERE") {
		t.Errorf("unexpected WHERE: %q", text)
	}
}

func TestBuildQuery_FilteredBindsPartition(t *testing.T) {
	value := "x' OR 1=1 --"
	text, params := buildQuery(mustQuery(t, strategy.Filtered, 3, value), domain.DefaultPartitionField)

	if !strings.Contains(text, "FROM c WHERE c.partKey = @partition ORDER BY") {
		t.Errorf("unexpected query: %q", text)
	}
	if strings.Contains(text, value) {
		t.Errorf("partition value interpolated into query text: %q", text)
	}
	last := params[len(params)-1]
	if last.Name != "@partition" || last.Value != value {
		t.Errorf("unexpected partition param: %+v", last)
	}
}

func TestBuildQuery_NonKeyFieldComparesAsText(t *testing.T) {
	q := mustQuery(t, strategy.Filtered, 3, "2019", query.WithPartitionField("release_year"))
	text, params := buildQuery(q, domain.DefaultPartitionField)

	// release_year is numeric in the documents; a string bind must not miss it
	if !strings.Contains(text, "FROM c WHERE ToString(c.release_year) = @partition ORDER BY") {
		t.Errorf("unexpected query: %q", text)
	}
	last := params[len(params)-1]
	if last.Name != "@partition" || last.Value != "2019" {
		t.Errorf("unexpected partition param: %+v", last)
	}
}

func TestPartitionKey_Scoping(t *testing.T) {
	s := newStore(&fakeContainer{}, Config{})

	if pk := s.partitionKey(mustQuery(t, strategy.Ordered, 3, "")); !pkEqual(pk, azcosmos.NewPartitionKey()) {
		t.Error("expected cross-partition key without filter")
	}
	want := azcosmos.NewPartitionKeyString("2019")
	if pk := s.partitionKey(mustQuery(t, strategy.Filtered, 3, "2019")); !pkEqual(pk, want) {
		t.Error("expected scoped partition key with filter")
	}

	// filter on a non-key field stays cross-partition
	q := mustQuery(t, strategy.Filtered, 3, "2019", query.WithPartitionField("release_year"))
	if pk := s.partitionKey(q); !pkEqual(pk, azcosmos.NewPartitionKey()) {
		t.Error("expected cross-partition key for non-key filter")
	}
}

// --- search.go tests ---

func TestSearchVector_PagesLazily(t *testing.T) {
	f := &fakeContainer{pages: [][][]byte{
		{
			[]byte(`{"id":"1","title":"A","rating":8.1,"release_year":2019,"partKey":"2019","similarityScore":0.1}`),
			[]byte(`{"id":"2","title":"B","partKey":2019,"similarityScore":0.2}`),
		},
		{
			[]byte(`{"id":"3","title":"C","similarityScore":0.3}`),
		},
	}}
	s := newStore(f, Config{})

	rows, err := s.SearchVector(context.Background(), mustQuery(t, strategy.Ordered, 10, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.fetched != 0 {
		t.Fatalf("expected no page fetched before Next, got %d", f.fetched)
	}
	if f.opts == nil || len(f.opts.QueryParameters) != 2 {
		t.Fatalf("expected bound parameters, got %+v", f.opts)
	}

	var got []db.Row
	for rows.Next(context.Background()) {
		got = append(got, rows.Row())
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows error: %v", err)
	}
	if len(got) != 3 || f.fetched != 2 {
		t.Fatalf("expected 3 rows over 2 pages, got %d rows, %d pages", len(got), f.fetched)
	}
	if got[0].Document.ReleaseYear != 2019 || *got[0].Document.Rating != 8.1 || got[0].Score != 0.1 {
		t.Errorf("unexpected first row: %+v", got[0])
	}
	if got[1].Document.PartKey != "2019" {
		t.Errorf("numeric partKey not rendered: %q", got[1].Document.PartKey)
	}
}

func TestSearchVector_StopsAtLimit(t *testing.T) {
	f := &fakeContainer{pages: [][][]byte{
		{[]byte(`{"id":"1"}`), []byte(`{"id":"2"}`)},
		{[]byte(`{"id":"3"}`)},
	}}
	s := newStore(f, Config{})

	rows, err := s.SearchVector(context.Background(), mustQuery(t, strategy.Unordered, 2, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := 0
	for rows.Next(context.Background()) {
		n++
	}
	if n != 2 || f.fetched != 1 {
		t.Errorf("expected 2 rows from 1 page, got %d rows, %d pages", n, f.fetched)
	}
}

func TestSearchVector_PageErrorCarriesCode(t *testing.T) {
	f := &fakeContainer{
		pages: [][][]byte{{}},
		pageErr: &azcore.ResponseError{
			ErrorCode:  "BadRequest",
			StatusCode: http.StatusBadRequest,
		},
	}
	s := newStore(f, Config{})

	rows, err := s.SearchVector(context.Background(), mustQuery(t, strategy.Ordered, 3, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows.Next(context.Background()) {
		t.Fatal("expected no rows")
	}
	var dbErr *db.Error
	if !errors.As(rows.Err(), &dbErr) {
		t.Fatalf("expected db.Error, got %v", rows.Err())
	}
	if dbErr.Code != "BadRequest" || dbErr.Op != db.OpSearch {
		t.Errorf("unexpected error: %+v", dbErr)
	}
}

func TestSearchVector_ZeroQuery(t *testing.T) {
	s := newStore(&fakeContainer{}, Config{})
	if _, err := s.SearchVector(context.Background(), query.SearchQuery{}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

// --- write.go / client.go tests ---

func TestUpsertDocument(t *testing.T) {
	f := &fakeContainer{}
	s := newStore(f, Config{})

	body := []byte(`{"id":"1","partKey":"p"}`)
	if err := s.UpsertDocument(context.Background(), &db.Item{ID: "1", PartitionKey: "p", Body: body}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(f.upserted) != string(body) || !pkEqual(f.upsertPK, azcosmos.NewPartitionKeyString("p")) {
		t.Errorf("unexpected upsert: %s", f.upserted)
	}
}

func TestUpsertDocument_RequiresPartition(t *testing.T) {
	s := newStore(&fakeContainer{}, Config{})
	if err := s.UpsertDocument(context.Background(), &db.Item{ID: "1"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPing_StatusCode(t *testing.T) {
	s := newStore(&fakeContainer{err: &azcore.ResponseError{StatusCode: http.StatusUnauthorized}}, Config{})

	var dbErr *db.Error
	if err := s.Ping(context.Background()); !errors.As(err, &dbErr) || dbErr.Code != "401" {
		t.Errorf("expected code 401, got %v", err)
	}
}

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func pkEqual(a, b azcosmos.PartitionKey) bool {
	return reflect.DeepEqual(a, b)
}
