// Package document uploads embedded batch documents into the configured store.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/db"
	"github.com/kailas-cloud/docvec/internal/domain"
)

// store is the consumer interface for document writes (ISP).
type store interface {
	UpsertDocument(ctx context.Context, item *db.Item) error
}

// StoreSink upserts every embedded document with its vector under docVector.
type StoreSink struct {
	store      store
	dimensions int
	logger     *zap.Logger
}

// NewStoreSink creates a store-backed sink. dims > 0 enforces the vector length.
func NewStoreSink(s store, dims int, logger *zap.Logger) *StoreSink {
	return &StoreSink{store: s, dimensions: dims, logger: logger}
}

// Write upserts doc. The id defaults to the file name without its extension.
func (s *StoreSink) Write(ctx context.Context, name string, doc []byte, vector []float32) error {
	item, err := buildItem(name, doc, vector)
	if err != nil {
		return err
	}
	if err := item.Document.Validate(s.dimensions); err != nil {
		return fmt.Errorf("upload %s: %w: %w", name, domain.ErrDocumentParse, err)
	}

	if err := s.store.UpsertDocument(ctx, item); err != nil {
		return fmt.Errorf("upload %s: %w", name, upsertError(err))
	}
	s.logger.Debug("Document uploaded",
		zap.String("file", name),
		zap.String("id", item.ID),
		zap.String("partition", item.PartitionKey),
	)
	return nil
}

// buildItem projects the known document fields and rewrites the body for storage:
// the pipeline's embedding key is replaced by docVector and a missing id is filled in.
func buildItem(name string, doc []byte, vector []float32) (*db.Item, error) {
	d := project(doc)
	d.DocVector = vector
	if d.ID == "" {
		d.ID = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	body, err := storeBody(doc, d.ID, vector)
	if err != nil {
		return nil, fmt.Errorf("build body for %s: %w: %w", name, domain.ErrDocumentParse, err)
	}
	return &db.Item{ID: d.ID, PartitionKey: d.PartKey, Document: d, Body: body}, nil
}

// storeBody copies every top-level member except the vector keys and id verbatim,
// then appends id and docVector.
func storeBody(doc []byte, id string, vector []float32) ([]byte, error) {
	idJSON, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(doc) + len(vecJSON) + len(idJSON) + 32)
	buf.WriteByte('{')
	err = jsonparser.ObjectEach(doc, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		switch string(key) {
		case domain.EmbeddingField, domain.VectorField, "id":
			return nil
		}
		k, err := json.Marshal(string(key))
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if typ == jsonparser.String {
			buf.WriteByte('"')
			buf.Write(value)
			buf.WriteByte('"')
		} else {
			buf.Write(value)
		}
		buf.WriteByte(',')
		return nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"id":`)
	buf.Write(idJSON)
	buf.WriteString(`,"` + domain.VectorField + `":`)
	buf.Write(vecJSON)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// project reads the searchable fields. Values of an unexpected type are left empty.
func project(doc []byte) domain.Document {
	var d domain.Document
	d.ID = scalar(doc, "id")
	d.Type = scalar(doc, "type")
	d.Title = scalar(doc, "title")
	d.Description = scalar(doc, "description")
	d.PartKey = scalar(doc, domain.DefaultPartitionField)
	if y, err := jsonparser.GetInt(doc, "release_year"); err == nil {
		d.ReleaseYear = int(y)
	}
	if r, err := jsonparser.GetFloat(doc, "rating"); err == nil {
		d.Rating = &r
	}
	return d
}

// scalar renders a string, number or boolean field as text.
func scalar(doc []byte, key string) string {
	v, typ, _, err := jsonparser.Get(doc, key)
	if err != nil {
		return ""
	}
	switch typ {
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return ""
		}
		return s
	case jsonparser.Number:
		return string(v)
	case jsonparser.Boolean:
		return strconv.FormatBool(string(v) == "true")
	default:
		return ""
	}
}

// upsertError keeps the store code so batch summaries can report it.
func upsertError(err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		msg := ""
		if dbErr.Err != nil {
			msg = dbErr.Err.Error()
		}
		return domain.NewQueryExecutionError(dbErr.Op, dbErr.Code, msg, err)
	}
	return domain.NewQueryExecutionError(db.OpUpsert, "", err.Error(), err)
}
