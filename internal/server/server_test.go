package server

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/khanglvm/listing-ranker/internal/engine"
	"github.com/khanglvm/listing-ranker/internal/learning"
	"github.com/khanglvm/listing-ranker/internal/storage"
)

const catalogJSON = `[
 {"id":"shop","title":"Магазин в центре","area":80,"price":100000,"type":"Магазин","has_parking":true},
 {"id":"office","title":"Офис у метро","area":45,"location":"метро","type":"Офис"}
]`

type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	e := engine.New(storage.NewMemoryStorage(), engine.Options{Learning: learning.Options{SyncWrites: true}})
	t.Cleanup(func() { e.Close() })
	return NewServer(e), e
}

// exchange feeds request lines through Serve and returns one response per line.
func exchange(t *testing.T, s *Server, lines ...string) []rawResponse {
	t.Helper()

	var out bytes.Buffer
	if err := s.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var responses []rawResponse
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		var r rawResponse
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("response is not JSON: %q", scanner.Text())
		}
		if r.JSONRPC != "2.0" {
			t.Errorf("expected JSONRPC 2.0, got %q", r.JSONRPC)
		}
		responses = append(responses, r)
	}
	return responses
}

func TestInitialize(t *testing.T) {
	s, e := newTestServer(t)

	resps := exchange(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if len(resps) != 1 {
		t.Fatalf("expected 1 response, got %d", len(resps))
	}
	if resps[0].Error != nil {
		t.Fatalf("unexpected error: %+v", resps[0].Error)
	}

	var res struct {
		ServerInfo struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	json.Unmarshal(resps[0].Result, &res)
	if res.ServerInfo.Name != "listing-ranker" {
		t.Errorf("expected listing-ranker, got %q", res.ServerInfo.Name)
	}
	if res.Session.ID != e.Session().ID {
		t.Errorf("expected session %q, got %q", e.Session().ID, res.Session.ID)
	}
}

func TestSearchClickFeedbackFlow(t *testing.T) {
	s, e := newTestServer(t)

	resps := exchange(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"catalog","params":{"items":`+strings.ReplaceAll(catalogJSON, "\n", "")+`}}`,
		`{"jsonrpc":"2.0","id":2,"method":"search","params":{"query":"магазин в центре","explain":true}}`,
		`{"jsonrpc":"2.0","id":3,"method":"click","params":{"item_id":"shop"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"feedback","params":{"rating":5}}`,
		`{"jsonrpc":"2.0","id":5,"method":"stats"}`,
	)
	if len(resps) != 5 {
		t.Fatalf("expected 5 responses, got %d", len(resps))
	}
	for i, r := range resps {
		if r.Error != nil {
			t.Fatalf("response %d: unexpected error %+v", i, r.Error)
		}
		if id, _ := r.ID.(float64); int(id) != i+1 {
			t.Errorf("response %d: expected id %d, got %v", i, i+1, r.ID)
		}
	}

	var search searchResult
	if err := json.Unmarshal(resps[1].Result, &search); err != nil {
		t.Fatalf("failed to decode search result: %v", err)
	}
	if search.Total == 0 || search.Results[0].ID != "shop" {
		t.Fatalf("expected shop first, got %+v", search.Results)
	}
	if len(search.Results[0].Detail) == 0 {
		t.Error("expected explain detail")
	}

	if ids := e.Snapshot().ContextualMappings["магазин в центре"]; len(ids) != 1 || ids[0] != "shop" {
		t.Errorf("expected click recorded, got %v", ids)
	}

	var stats learning.Stats
	json.Unmarshal(resps[4].Result, &stats)
	if stats.TotalQueries != 2 {
		t.Errorf("expected search and rating in stats, got %d", stats.TotalQueries)
	}
	if stats.CurrentFeatureWeights[learning.FactorExact] != 110 {
		t.Errorf("expected exact_match 110, got %v", stats.CurrentFeatureWeights[learning.FactorExact])
	}
}

func TestSearchInlineItemsAndLimit(t *testing.T) {
	s, _ := newTestServer(t)

	resps := exchange(t, s,
		`{"jsonrpc":"2.0","id":"a","method":"search","params":{"query":"","limit":1,"items":`+strings.ReplaceAll(catalogJSON, "\n", "")+`}}`,
	)

	var search searchResult
	json.Unmarshal(resps[0].Result, &search)
	if search.Total != 2 {
		t.Errorf("expected pass-through total 2, got %d", search.Total)
	}
	if len(search.Results) != 1 {
		t.Errorf("expected limit to trim to 1, got %d", len(search.Results))
	}
	if resps[0].ID != "a" {
		t.Errorf("expected string id preserved, got %v", resps[0].ID)
	}
}

func TestInteractionAndPreference(t *testing.T) {
	s, e := newTestServer(t)

	resps := exchange(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"interaction","params":{"query":"склад у метро","result_count":3,"clicked_item_ids":["w1","w1"],"feedback_rating":4}}`,
		`{"jsonrpc":"2.0","id":2,"method":"preference","params":{"key":"feature_metro","delta":1.5}}`,
		`{"jsonrpc":"2.0","id":3,"method":"session"}`,
	)
	for i, r := range resps {
		if r.Error != nil {
			t.Fatalf("response %d: unexpected error %+v", i, r.Error)
		}
	}

	snap := e.Snapshot()
	if ids := snap.ContextualMappings["склад у метро"]; len(ids) != 1 {
		t.Errorf("expected deduplicated mapping, got %v", ids)
	}
	if snap.Weight(learning.FactorSize) != 35 {
		t.Errorf("expected size_match 35, got %v", snap.Weight(learning.FactorSize))
	}
	if v, _ := snap.Preference("feature_metro"); v != 1.5 {
		t.Errorf("expected preference 1.5, got %v", v)
	}
}

func TestErrors(t *testing.T) {
	s, _ := newTestServer(t)

	resps := exchange(t, s,
		`not json`,
		`{"jsonrpc":"2.0","id":1,"method":"unknown"}`,
		`{"jsonrpc":"2.0","id":2,"method":"click","params":{}}`,
		`{"jsonrpc":"2.0","id":3,"method":"feedback","params":{"rating":"five"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"preference","params":{"delta":1}}`,
		`{"jsonrpc":"2.0","id":5,"method":"catalog","params":{"items":[{"title":"no id"}]}}`,
		`{"jsonrpc":"2.0","id":6,"method":"search","params":{"query":"x","limit":-1}}`,
	)

	want := []int{CodeParseError, CodeMethodNotFound, CodeInvalidParams, CodeInvalidParams, CodeInvalidParams, CodeInvalidParams, CodeInvalidParams}
	if len(resps) != len(want) {
		t.Fatalf("expected %d responses, got %d", len(want), len(resps))
	}
	for i, code := range want {
		if resps[i].Error == nil {
			t.Errorf("response %d: expected error %d, got result", i, code)
			continue
		}
		if resps[i].Error.Code != code {
			t.Errorf("response %d: expected code %d, got %d", i, code, resps[i].Error.Code)
		}
	}
}

func TestFeedbackOutOfRangeIgnored(t *testing.T) {
	s, e := newTestServer(t)

	resps := exchange(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"search","params":{"query":"офис","items":[]}}`,
		`{"jsonrpc":"2.0","id":2,"method":"feedback","params":{"rating":7}}`,
	)
	if resps[1].Error != nil {
		t.Fatalf("expected silent no-op, got %+v", resps[1].Error)
	}
	stats := e.Stats()
	if stats.TotalQueries != 1 || stats.CurrentFeatureWeights[learning.FactorExact] != 100 {
		t.Errorf("expected only the search logged, got %+v", stats)
	}
}

func TestPreferenceOverflowRejected(t *testing.T) {
	s, e := newTestServer(t)

	resps := exchange(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"preference","params":{"key":"type_офис","delta":1e308}}`,
		`{"jsonrpc":"2.0","id":2,"method":"preference","params":{"key":"type_офис","delta":1e308}}`,
	)
	if resps[0].Error != nil {
		t.Fatalf("unexpected error: %+v", resps[0].Error)
	}
	if resps[1].Error == nil || resps[1].Error.Code != CodeInvalidParams {
		t.Fatalf("expected invalid params for overflow, got %+v", resps[1].Error)
	}
	if v, _ := e.Snapshot().Preference("type_офис"); v != 1e308 {
		t.Errorf("expected preference unchanged at 1e308, got %v", v)
	}
}
