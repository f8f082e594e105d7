// Package mlclient is the HTTP client for the ML worker, which serves
// embeddings and cross-encoder reranking.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Embedding is one query or passage representation. Dense and sparse
// come from the same model invocation so their vocabularies and score
// scales match; callers must never mix representations from separate
// calls.
type Embedding struct {
	Dense         []float32 `json:"dense"`
	SparseIndices []uint32  `json:"sparse_indices"`
	SparseValues  []float32 `json:"sparse_values"`
}

// Client talks to the ML worker.
type Client struct {
	baseURL     string
	embedModel  string
	rerankModel string
	http        *http.Client
}

// New creates a Client for the worker at baseURL.
func New(baseURL, embedModel, rerankModel string) *Client {
	return &Client{
		baseURL:     baseURL,
		embedModel:  embedModel,
		rerankModel: rerankModel,
		http:        &http.Client{},
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Dense  []float64 `json:"dense"`
	Sparse struct {
		Indices []uint32  `json:"indices"`
		Values  []float64 `json:"values"`
	} `json:"sparse"`
}

// Embed returns the dense and sparse representations of text from a
// single worker call.
func (c *Client) Embed(ctx context.Context, text string) (Embedding, error) {
	var resp embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: c.embedModel, Input: text}, &resp); err != nil {
		return Embedding{}, fmt.Errorf("mlclient: embed: %w", err)
	}

	out := Embedding{
		Dense:         make([]float32, len(resp.Dense)),
		SparseIndices: resp.Sparse.Indices,
		SparseValues:  make([]float32, len(resp.Sparse.Values)),
	}
	for i, v := range resp.Dense {
		out.Dense[i] = float32(v)
	}
	for i, v := range resp.Sparse.Values {
		out.SparseValues[i] = float32(v)
	}
	return out, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank scores each passage against the query pairwise, returning one
// score per passage in input order.
func (c *Client) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	var resp rerankResponse
	if err := c.post(ctx, "/api/rerank", rerankRequest{Model: c.rerankModel, Query: query, Documents: passages}, &resp); err != nil {
		return nil, fmt.Errorf("mlclient: rerank: %w", err)
	}
	if len(resp.Scores) != len(passages) {
		return nil, fmt.Errorf("mlclient: rerank returned %d scores for %d passages", len(resp.Scores), len(passages))
	}
	return resp.Scores, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
