package gamma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func marketsHandler(t *testing.T, known map[string][]string, gotBatches *[][]string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("path=%q want /markets", r.URL.Path)
		}
		ids := r.URL.Query()["id"]
		if gotBatches != nil {
			*gotBatches = append(*gotBatches, ids)
		}
		out := []map[string]string{}
		for _, id := range ids {
			prices, ok := known[id]
			if !ok {
				continue
			}
			raw, _ := json.Marshal(prices)
			out = append(out, map[string]string{
				"id":            id,
				"outcomePrices": string(raw),
				"liquidity":     "1234.5",
				"volume":        "999",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func TestFetchPrices(t *testing.T) {
	srv := httptest.NewServer(marketsHandler(t, map[string][]string{
		"m1": {"0.55", "0.45"},
		"m2": {"0.30", "0.70"},
	}, nil))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	prices, err := c.FetchPrices(context.Background(), []string{"m1", "m2", "unknown"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("prices=%d want 2", len(prices))
	}
	m1 := prices["m1"]
	if m1.YesPrice.String() != "0.55" || m1.NoPrice.String() != "0.45" {
		t.Fatalf("m1 yes=%s no=%s", m1.YesPrice, m1.NoPrice)
	}
	if m1.Liquidity.String() != "1234.5" {
		t.Fatalf("liquidity=%s", m1.Liquidity)
	}
	if _, ok := prices["unknown"]; ok {
		t.Fatalf("unknown market should be absent")
	}
}

func TestFetchPrices_Batching(t *testing.T) {
	known := map[string][]string{}
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		known[id] = []string{"0.5", "0.5"}
	}
	var batches [][]string
	srv := httptest.NewServer(marketsHandler(t, known, &batches))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL).WithBatchSize(2)
	prices, err := c.FetchPrices(context.Background(), ids)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(prices) != 5 {
		t.Fatalf("prices=%d want 5", len(prices))
	}
	if len(batches) != 3 {
		t.Fatalf("batches=%d want 3", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[2]) != 1 {
		t.Fatalf("batch sizes=%d,%d,%d", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestFetchPrices_MalformedOutcomePricesSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"good","outcomePrices":"[\"0.6\", \"0.4\"]"},
			{"id":"bad","outcomePrices":"not json"},
			{"id":"short","outcomePrices":"[\"0.6\"]"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	prices, err := c.FetchPrices(context.Background(), []string{"good", "bad", "short"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(prices) != 1 {
		t.Fatalf("prices=%d want 1", len(prices))
	}
	if _, ok := prices["good"]; !ok {
		t.Fatalf("good market missing")
	}
}

func TestFetchPrices_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	if _, err := c.FetchPrices(context.Background(), []string{"m1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFetchPrices_EmptyInput(t *testing.T) {
	c := NewClient(http.DefaultClient, "http://unused.invalid")
	prices, err := c.FetchPrices(context.Background(), nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(prices) != 0 {
		t.Fatalf("prices=%d want 0", len(prices))
	}
}
