// internal/search/esfetch/fetcher.go
package esfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"search-relevance-engine/internal/common/errors"
	"search-relevance-engine/internal/common/logger"
	"search-relevance-engine/internal/models"
)

// Fetcher implements the engine's CandidateFetcher over a single
// Elasticsearch index. Every document carries a "kind" discriminator; the
// query is deliberately coarse (broad text match plus category filter)
// because refinement and ordering belong to the scoring pipeline, not
// here.
type Fetcher struct {
	client *elasticsearch.Client
	index  string
	size   int
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, size int, log logger.Logger) *Fetcher {
	if size <= 0 {
		size = 200
	}
	return &Fetcher{
		client: client,
		index:  index,
		size:   size,
		logger: log.WithFields(map[string]interface{}{"component": "esfetch"}),
	}
}

// esDoc is the union shape of an indexed candidate document. Only the
// fields matching Kind are populated.
type esDoc struct {
	Kind        string     `json:"kind"`
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	RatingCount *int       `json:"ratingCount,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	Status      string     `json:"status,omitempty"`

	Username  string `json:"username,omitempty"`
	FullName  string `json:"fullName,omitempty"`
	Bio       string `json:"bio,omitempty"`
	ItemCount *int   `json:"itemCount,omitempty"`

	Name       string `json:"name,omitempty"`
	UsageCount *int   `json:"usageCount,omitempty"`

	Label   string `json:"label,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source esDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// FetchCandidates runs the coarse batch query and partitions the hits by
// kind. An empty query returns an empty batch without touching the index.
func (f *Fetcher) FetchCandidates(ctx context.Context, query models.Query) (models.CandidateBatch, error) {
	text := query.Normalized()
	if text == "" {
		return models.CandidateBatch{}, nil
	}

	body, err := json.Marshal(f.buildQuery(text, query.Category))
	if err != nil {
		return models.CandidateBatch{}, fmt.Errorf("marshal query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{f.index},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, f.client)
	if err != nil {
		return models.CandidateBatch{}, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusNotFound {
			return models.CandidateBatch{}, errors.NewIndexNotFoundError(f.index)
		}
		return models.CandidateBatch{}, errors.NewCandidateFetchFailedError(
			fmt.Errorf("search failed: %s", res.String()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return models.CandidateBatch{}, errors.NewCandidateFetchFailedError(
			fmt.Errorf("decode response: %w", err))
	}

	batch := models.CandidateBatch{}
	for _, hit := range parsed.Hits.Hits {
		f.collect(&batch, hit.Source)
	}

	f.logger.Debug("candidate batch fetched", map[string]interface{}{
		"query": text,
		"total": batch.Total(),
	})
	return batch, nil
}

func (f *Fetcher) buildQuery(text, category string) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"should": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":     text,
					"fields":    []string{"title", "description", "tags", "username", "fullName", "name", "label", "excerpt"},
					"fuzziness": "AUTO",
				},
			},
		},
		"minimum_should_match": 1,
	}

	var filters []interface{}
	if category != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"category.keyword": strings.ToLower(category)},
		})
	}
	// Withdrawn or archived documents never reach scoring.
	filters = append(filters, map[string]interface{}{
		"bool": map[string]interface{}{
			"must_not": map[string]interface{}{
				"terms": map[string]interface{}{"status.keyword": []string{"archived", "deleted"}},
			},
		},
	})
	boolQuery["filter"] = filters

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"size":  f.size,
	}
}

func (f *Fetcher) collect(batch *models.CandidateBatch, doc esDoc) {
	switch models.ResultKind(doc.Kind) {
	case models.KindItem:
		batch.Items = append(batch.Items, models.ItemCandidate{
			ID:          doc.ID,
			Title:       doc.Title,
			Description: doc.Description,
			Tags:        doc.Tags,
			Rating:      doc.Rating,
			RatingCount: doc.RatingCount,
			CreatedAt:   doc.CreatedAt,
			Status:      doc.Status,
		})
	case models.KindUser:
		batch.Users = append(batch.Users, models.UserCandidate{
			ID:        doc.ID,
			Username:  doc.Username,
			FullName:  doc.FullName,
			Bio:       doc.Bio,
			ItemCount: doc.ItemCount,
		})
	case models.KindTag:
		batch.Tags = append(batch.Tags, models.TagCandidate{
			ID:         doc.ID,
			Name:       doc.Name,
			UsageCount: doc.UsageCount,
		})
	case models.KindAction:
		batch.Actions = append(batch.Actions, models.ActionCandidate{
			ID:    doc.ID,
			Label: doc.Label,
		})
	case models.KindReview:
		batch.Reviews = append(batch.Reviews, models.ReviewCandidate{
			ID:      doc.ID,
			Excerpt: doc.Excerpt,
			Rating:  doc.Rating,
		})
	default:
		f.logger.Debug("skipping document with unknown kind", map[string]interface{}{
			"kind": doc.Kind,
			"id":   doc.ID,
		})
	}
}
