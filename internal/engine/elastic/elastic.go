// Package elastic implements the engine port on an Elasticsearch-compatible
// cluster through the official go-elasticsearch client. Postgres remains the
// source of truth; the index is a read-optimised projection keyed by recipe
// id.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
)

// Client is the Elasticsearch adapter.
type Client struct {
	es     *elasticsearch.Client
	logger *slog.Logger
}

var _ engine.Engine = (*Client)(nil)

// New creates a client for the configured cluster. It does not contact the
// cluster; use Ping for that.
func New(cfg config.SearchConfig) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		// Admin operations carry their own retry policy.
		MaxRetries: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &Client{
		es:     es,
		logger: slog.Default().With("component", "elastic"),
	}, nil
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// transportError marks a failure to reach the cluster.
func transportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrEngineUnavailable, err)
}

// responseError converts a non-2xx response into an error. Overload and
// gateway statuses count as the engine being unavailable.
func responseError(op string, res *esapi.Response) error {
	data, _ := io.ReadAll(res.Body)
	var body errorBody
	reason := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error.Type != "" {
		reason = body.Error.Type + ": " + body.Error.Reason
	}
	switch {
	case body.Error.Type == "resource_already_exists_exception":
		return fmt.Errorf("%s: %w", op, apperrors.ErrIndexExists)
	case body.Error.Type == "index_not_found_exception":
		return fmt.Errorf("%s: %w", op, apperrors.ErrIndexNotFound)
	case res.StatusCode == http.StatusTooManyRequests,
		res.StatusCode == http.StatusBadGateway,
		res.StatusCode == http.StatusServiceUnavailable,
		res.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w: [%s] %s", op, apperrors.ErrEngineUnavailable, res.Status(), reason)
	}
	return fmt.Errorf("%s: [%s] %s", op, res.Status(), reason)
}

// Ping checks that the cluster answers.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return transportError("ping", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

// IndexExists reports whether index exists.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, transportError("index exists", err)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, responseError("index exists", res)
}

// CreateIndex creates index with the analysis settings and mappings of def.
func (c *Client) CreateIndex(ctx context.Context, index string, def *schema.Definition) error {
	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding index definition: %w", err)
	}
	res, err := c.es.Indices.Create(index,
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return transportError("create index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	c.logger.Info("index created", "index", index, "synonym_rules", len(def.SynonymRules))
	return nil
}

// DeleteIndex deletes index.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	res, err := c.es.Indices.Delete([]string{index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return transportError("delete index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("delete index", res)
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkIndex writes docs with their recipe id as document id, so re-running a
// load overwrites instead of duplicating.
func (c *Client) BulkIndex(ctx context.Context, index string, docs []schema.RecipeDocument) (engine.BulkResult, error) {
	if len(docs) == 0 {
		return engine.BulkResult{}, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		meta := map[string]any{"index": map[string]any{"_index": index, "_id": docs[i].ID}}
		if err := enc.Encode(meta); err != nil {
			return engine.BulkResult{}, fmt.Errorf("encoding bulk action: %w", err)
		}
		if err := enc.Encode(&docs[i]); err != nil {
			return engine.BulkResult{}, fmt.Errorf("encoding recipe %s: %w", docs[i].ID, err)
		}
	}

	res, err := c.es.Bulk(bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithIndex(index),
		c.es.Bulk.WithRefresh("wait_for"),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return engine.BulkResult{}, transportError("bulk", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return engine.BulkResult{}, responseError("bulk", res)
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return engine.BulkResult{}, fmt.Errorf("decoding bulk response: %w", err)
	}
	var out engine.BulkResult
	for _, item := range parsed.Items {
		for _, r := range item {
			if r.Error != nil || r.Status >= 300 {
				reason := fmt.Sprintf("status %d", r.Status)
				if r.Error != nil {
					reason = r.Error.Type + ": " + r.Error.Reason
				}
				out.Failed = append(out.Failed, engine.BulkItemError{ID: r.ID, Reason: reason})
				continue
			}
			out.Indexed++
		}
	}
	return out, nil
}

// UpdateCounters sends a partial document update.
func (c *Client) UpdateCounters(ctx context.Context, index, id string, fields map[string]int64) error {
	body, err := json.Marshal(map[string]any{"doc": fields})
	if err != nil {
		return fmt.Errorf("encoding partial update: %w", err)
	}
	res, err := c.es.Update(index, id, bytes.NewReader(body),
		c.es.Update.WithRetryOnConflict(3),
		c.es.Update.WithContext(ctx),
	)
	if err != nil {
		return transportError("update", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		err := responseError("update", res)
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			return err
		}
		return fmt.Errorf("update %s: %w", id, apperrors.ErrRecipeNotFound)
	}
	if res.IsError() {
		return responseError("update", res)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string                `json:"_id"`
			Score  float64               `json:"_score"`
			Source schema.RecipeDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs req against index.
func (c *Client) Search(ctx context.Context, index string, req *query.Request) (*engine.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, transportError("search", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	out := &engine.Result{
		Total: parsed.Hits.Total.Value,
		Hits:  make([]engine.Hit, 0, len(parsed.Hits.Hits)),
	}
	for _, h := range parsed.Hits.Hits {
		doc := h.Source
		doc.ID = h.ID
		out.Hits = append(out.Hits, engine.Hit{ID: h.ID, Score: h.Score, Document: doc})
	}
	return out, nil
}

// Count returns the number of documents in index.
func (c *Client) Count(ctx context.Context, index string) (int, error) {
	res, err := c.es.Count(c.es.Count.WithIndex(index), c.es.Count.WithContext(ctx))
	if err != nil {
		return 0, transportError("count", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, responseError("count", res)
	}
	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return parsed.Count, nil
}
