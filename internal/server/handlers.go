package server

import (
	"context"
	"errors"
	"time"

	"github.com/khanglvm/listing-ranker/internal/learning"
	"github.com/khanglvm/listing-ranker/internal/scoring"
)

type catalogParams struct {
	Items []scoring.Item `json:"items"`
}

type searchParams struct {
	Query   string         `json:"query"`
	Items   []scoring.Item `json:"items"`
	Limit   int            `json:"limit"`
	Explain bool           `json:"explain"`
}

type searchHit struct {
	ID      string             `json:"id"`
	Score   float64            `json:"score"`
	Factors []string           `json:"factors,omitempty"`
	Detail  map[string]float64 `json:"detail,omitempty"`
	Item    scoring.Item       `json:"item"`
}

type searchResult struct {
	SearchID  string      `json:"search_id"`
	SessionID string      `json:"session_id"`
	Query     string      `json:"query"`
	Total     int         `json:"total"`
	TookMS    float64     `json:"took_ms"`
	Results   []searchHit `json:"results"`
}

type clickParams struct {
	ItemID string `json:"item_id"`
}

type feedbackParams struct {
	Rating int `json:"rating"`
}

type interactionParams struct {
	Query          string   `json:"query"`
	ResultCount    int      `json:"result_count"`
	ClickedItemIDs []string `json:"clicked_item_ids"`
	FeedbackRating int      `json:"feedback_rating"`
}

type preferenceParams struct {
	Key   string  `json:"key"`
	Delta float64 `json:"delta"`
}

type ack struct {
	OK bool `json:"ok"`
}

func (s *Server) handleCatalog(req *Request) *Response {
	var params catalogParams
	if resp := decodeParams(req, &params); resp != nil {
		return resp
	}
	for _, it := range params.Items {
		if it.ID == "" {
			return failure(req, CodeInvalidParams, "catalog item without id")
		}
	}

	s.SetCatalog(params.Items)
	s.log.Info().Int("items", len(params.Items)).Msg("catalog replaced")
	return result(req, map[string]int{"items": len(params.Items)})
}

func (s *Server) handleSearch(ctx context.Context, req *Request) *Response {
	var params searchParams
	if resp := decodeParams(req, &params); resp != nil {
		return resp
	}
	if params.Limit < 0 {
		return failure(req, CodeInvalidParams, "limit must not be negative")
	}

	items := params.Items
	if items == nil {
		items = s.defaultCatalog()
	}

	resp, err := s.engine.Search(ctx, params.Query, items)
	if err != nil {
		return failure(req, CodeExecution, err.Error())
	}

	ranked := resp.Results
	if params.Limit > 0 && len(ranked) > params.Limit {
		ranked = ranked[:params.Limit]
	}

	hits := make([]searchHit, len(ranked))
	for i, r := range ranked {
		hits[i] = searchHit{ID: r.Item.ID, Score: r.Score, Factors: r.Factors, Item: r.Item}
		if params.Explain {
			hits[i].Detail = r.Detail
		}
	}

	return result(req, searchResult{
		SearchID:  resp.SearchID,
		SessionID: resp.SessionID,
		Query:     resp.Query,
		Total:     resp.Total,
		TookMS:    float64(resp.Duration) / float64(time.Millisecond),
		Results:   hits,
	})
}

func (s *Server) handleClick(req *Request) *Response {
	var params clickParams
	if resp := decodeParams(req, &params); resp != nil {
		return resp
	}
	if params.ItemID == "" {
		return failure(req, CodeInvalidParams, "item_id is required")
	}

	if err := s.engine.Click(params.ItemID); err != nil {
		return failure(req, CodeExecution, err.Error())
	}
	return result(req, ack{OK: true})
}

func (s *Server) handleFeedback(req *Request) *Response {
	var params feedbackParams
	if resp := decodeParams(req, &params); resp != nil {
		return resp
	}

	// Out-of-range ratings are accepted and ignored by the learner.
	if err := s.engine.Feedback(params.Rating); err != nil {
		return failure(req, CodeExecution, err.Error())
	}
	return result(req, ack{OK: true})
}

func (s *Server) handleInteraction(req *Request) *Response {
	var params interactionParams
	if resp := decodeParams(req, &params); resp != nil {
		return resp
	}

	in := learning.NewInteraction(params.Query, params.ResultCount, params.ClickedItemIDs, params.FeedbackRating, "")
	if err := s.engine.RecordInteraction(in); err != nil {
		return failure(req, CodeExecution, err.Error())
	}
	return result(req, ack{OK: true})
}

func (s *Server) handlePreference(req *Request) *Response {
	var params preferenceParams
	if resp := decodeParams(req, &params); resp != nil {
		return resp
	}
	if params.Key == "" {
		return failure(req, CodeInvalidParams, "key is required")
	}

	if err := s.engine.AdjustPreference(params.Key, params.Delta); err != nil {
		if errors.Is(err, learning.ErrInvalidPreference) {
			return failure(req, CodeInvalidParams, err.Error())
		}
		return failure(req, CodeExecution, err.Error())
	}
	return result(req, ack{OK: true})
}
