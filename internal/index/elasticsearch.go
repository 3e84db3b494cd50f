package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// indexMapping keeps doc_id sortable so List can page with search_after.
const indexMapping = `{
  "mappings": {
    "properties": {
      "doc_id":         {"type": "keyword"},
      "item_type":      {"type": "keyword"},
      "item_reference": {"type": "keyword"},
      "category":       {"type": "keyword"},
      "title":          {"type": "text"},
      "content":        {"type": "text"},
      "source_url":     {"type": "keyword"},
      "content_hash":   {"type": "keyword"},
      "metadata":       {"type": "flattened"}
    }
  }
}`

// ElasticsearchIndex stores documents in a single Elasticsearch index.
type ElasticsearchIndex struct {
	client *es.Client
	cfg    Config
	log    logger.Logger
}

var _ Index = (*ElasticsearchIndex)(nil)

// NewElasticsearchIndex creates an index backed by client.
func NewElasticsearchIndex(client *es.Client, cfg Config, log logger.Logger) *ElasticsearchIndex {
	cfg.SetDefaults()
	return &ElasticsearchIndex{client: client, cfg: cfg, log: log}
}

// EnsureIndex creates the index with its mapping if it does not exist.
func (x *ElasticsearchIndex) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	res, err := x.client.Indices.Exists([]string{x.cfg.IndexName}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: %s", x.cfg.IndexName, res.Status())
	}

	res, err = x.client.Indices.Create(
		x.cfg.IndexName,
		x.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		x.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index %s: %s", x.cfg.IndexName, readError(res))
	}

	x.log.Info("Created index", logger.String("index", x.cfg.IndexName))
	return nil
}

// Upsert implements Index.
func (x *ElasticsearchIndex) Upsert(ctx context.Context, doc Document) (string, error) {
	if doc.ID == "" {
		doc.ID = DocumentID(doc.ItemType, doc.ItemReference)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", &domain.IndexError{Kind: domain.IndexUploadFailed, Ref: doc.ID, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	res, err := x.client.Index(
		x.cfg.IndexName,
		bytes.NewReader(body),
		x.client.Index.WithContext(ctx),
		x.client.Index.WithDocumentID(doc.ID),
		x.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return "", &domain.IndexError{Kind: domain.IndexUploadFailed, Ref: doc.ID, Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", responseError(res, domain.IndexUploadFailed, doc.ID)
	}

	x.log.Debug("Document indexed",
		logger.String("doc_id", doc.ID),
		logger.ItemType(string(doc.ItemType)),
		logger.ItemRef(doc.ItemReference),
	)
	return doc.ID, nil
}

// Delete implements Index.
func (x *ElasticsearchIndex) Delete(ctx context.Context, ref string) error {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	res, err := x.client.Delete(
		x.cfg.IndexName,
		ref,
		x.client.Delete.WithContext(ctx),
		x.client.Delete.WithRefresh("true"),
	)
	if err != nil {
		return &domain.IndexError{Kind: domain.IndexDeleteFailed, Ref: ref, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError(res, domain.IndexDeleteFailed, ref)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID   string `json:"_id"`
			Sort []any  `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// List implements Index by paging over doc_id with search_after.
func (x *ElasticsearchIndex) List(ctx context.Context) ([]string, error) {
	var (
		refs  []string
		after []any
	)

	for {
		query := map[string]any{
			"size":    x.cfg.ListPageSize,
			"_source": false,
			"sort":    []any{map[string]any{"doc_id": "asc"}},
			"query":   map[string]any{"match_all": map[string]any{}},
		}
		if after != nil {
			query["search_after"] = after
		}

		page, err := x.search(ctx, query)
		if err != nil {
			return nil, err
		}

		hits := page.Hits.Hits
		for _, h := range hits {
			refs = append(refs, h.ID)
		}
		if len(hits) < x.cfg.ListPageSize {
			return refs, nil
		}
		after = hits[len(hits)-1].Sort
	}
}

func (x *ElasticsearchIndex) search(ctx context.Context, query map[string]any) (*searchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, x.cfg.RequestTimeout)
	defer cancel()

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.cfg.IndexName),
		x.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return &searchResponse{}, nil
	}
	if res.IsError() {
		return nil, responseError(res, domain.IndexUploadFailed, x.cfg.IndexName)
	}

	var page searchResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &page, nil
}

// responseError maps an error response to an IndexError. 429 means the
// cluster is shedding load and the pass should stop.
func responseError(res *esapi.Response, kind domain.IndexErrorKind, ref string) error {
	if res.StatusCode == http.StatusTooManyRequests {
		kind = domain.IndexQuotaExceeded
	}
	return &domain.IndexError{Kind: kind, Ref: ref, Err: errors.New(readError(res))}
}

func readError(res *esapi.Response) string {
	b, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil || len(b) == 0 {
		return res.Status()
	}
	return res.Status() + ": " + string(b)
}
