package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatpdf/internal/domain"
	"chatpdf/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// It uses cosine distance and creates the collection if missing.
// Result order among equal scores is whatever Qdrant returns.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type collectionInfo struct {
	Result struct {
		PointsCount int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// info returns vectorstore.ErrNotFound for a missing collection.
func (s *Storage) info(ctx context.Context) (*collectionInfo, error) {
	var out collectionInfo
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, &out)
	if status == http.StatusNotFound {
		return nil, vectorstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Storage) Open(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	info, err := s.info(ctx)
	switch {
	case err == nil:
		if size := info.Result.Config.Params.Vectors.Size; size != dimension {
			return fmt.Errorf("%w: collection has %d, got %d", domain.ErrDimensionMismatch, size, dimension)
		}
		return nil
	case errors.Is(err, vectorstore.ErrNotFound):
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		_, err = s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
		return err
	default:
		return err
	}
}

func (s *Storage) Attach(ctx context.Context) (int, error) {
	info, err := s.info(ctx)
	if err != nil {
		return 0, err
	}
	return info.Result.Config.Params.Vectors.Size, nil
}

func (s *Storage) Exists(ctx context.Context) (bool, error) {
	info, err := s.info(ctx)
	if errors.Is(err, vectorstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Result.PointsCount > 0, nil
}

// Append upserts all records in one request and waits for it to apply.
func (s *Storage) Append(ctx context.Context, records []domain.IndexedVector) error {
	points := make([]point, len(records))
	for i, r := range records {
		points[i] = point{
			ID:     pointID(r.ChunkID),
			Vector: r.Embedding,
			Payload: map[string]any{
				"chunk_id":    r.Chunk.ID,
				"document_id": r.Chunk.Source.DocumentID,
				"path":        r.Chunk.Source.Path,
				"page":        r.Chunk.Source.Page,
				"offset":      r.Chunk.Source.Offset,
				"text":        r.Chunk.Text,
				"metadata":    r.Chunk.Metadata,
			},
		}
	}
	body := map[string]any{"points": points}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
	return err
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int, threshold float64) ([]domain.SearchResult, error) {
	req := map[string]any{
		"vector":          vector,
		"limit":           topK,
		"with_payload":    true,
		"score_threshold": threshold,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		if r.Score < threshold {
			continue
		}
		results = append(results, domain.SearchResult{Chunk: chunkFromPayload(r.Payload), Score: r.Score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Clear drops the collection.
func (s *Storage) Clear(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func chunkFromPayload(p map[string]any) domain.Chunk {
	chunk := domain.Chunk{}
	if v, ok := p["chunk_id"].(string); ok {
		chunk.ID = v
	}
	if v, ok := p["document_id"].(string); ok {
		chunk.Source.DocumentID = v
	}
	if v, ok := p["path"].(string); ok {
		chunk.Source.Path = v
	}
	if v, ok := p["page"].(float64); ok {
		chunk.Source.Page = int(v)
	}
	if v, ok := p["offset"].(float64); ok {
		chunk.Source.Offset = int(v)
	}
	if v, ok := p["text"].(string); ok {
		chunk.Text = v
	}
	if v, ok := p["metadata"].(map[string]any); ok {
		chunk.Metadata = v
	}
	return chunk
}

// pointID maps chunk ids to the UUIDs Qdrant accepts.
func pointID(chunkID string) string {
	if id, err := uuid.Parse(chunkID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}
