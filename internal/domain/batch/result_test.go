package batch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/docvec/internal/domain"
)

func TestResult(t *testing.T) {
	ok := NewOK("a.json")
	if ok.Status() != StatusOK || ok.Err() != nil || ok.Name() != "a.json" {
		t.Errorf("unexpected ok result: %+v", ok)
	}

	errBoom := errors.New("boom")
	bad := NewError("b.json", errBoom)
	if bad.Status() != StatusError || !errors.Is(bad.Err(), errBoom) {
		t.Errorf("unexpected error result: %+v", bad)
	}
}

func TestSummary_Add(t *testing.T) {
	s := NewSummary()
	s.Add(NewOK("a.json"))
	s.Add(NewError("c.json", fmt.Errorf("embed: %w", domain.ErrEmbeddingService)))
	s.Add(NewError("b.json", fmt.Errorf("parse: %w", domain.ErrDocumentParse)))

	if s.Processed != 3 || s.Succeeded != 1 || s.Failed != 2 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if len(s.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(s.Errors))
	}

	kinds := s.ErrorKinds()
	if kinds["b.json"] != domain.KindDocumentParse {
		t.Errorf("b.json kind = %q", kinds["b.json"])
	}
	if kinds["c.json"] != domain.KindEmbeddingService {
		t.Errorf("c.json kind = %q", kinds["c.json"])
	}

	names := s.FailedNames()
	if len(names) != 2 || names[0] != "b.json" || names[1] != "c.json" {
		t.Errorf("FailedNames() = %v", names)
	}
}

func TestSummary_ZeroValue(t *testing.T) {
	var s Summary
	s.Add(NewError("x.json", errors.New("x")))
	if s.Failed != 1 || len(s.Errors) != 1 {
		t.Errorf("zero-value summary must accept results: %+v", s)
	}
}
