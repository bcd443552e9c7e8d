package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func misServer(t *testing.T, channels map[string]string) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var requested []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/api/getStockInfo.jsp" {
			http.NotFound(w, r)
			return
		}
		channel := r.URL.Query().Get("ex_ch")
		mu.Lock()
		requested = append(requested, channel)
		mu.Unlock()

		body, ok := channels[channel]
		if !ok {
			body = `{"msgArray":[],"rtcode":"0000","rtmessage":"OK"}`
		}
		if body == "500" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), requested...)
	}
}

func newTestMISClient(baseURL string) *MISClient {
	cfg := newTestConfig()
	cfg.Upstream.MISBaseURL = baseURL
	return NewMISClient(cfg, zap.NewNop(), NewMetrics())
}

func TestMISFetchQuote_FallsBackToOTC(t *testing.T) {
	srv, requested := misServer(t, map[string]string{
		"otc_6488.tw": `{"msgArray":[{"c":"6488","n":"環球晶","z":"-","y":"455.0000","o":"456.0000","h":"460.0000","l":"-","v":"12345"}],"rtcode":"0000"}`,
	})
	client := newTestMISClient(srv.URL)

	quote, err := client.FetchQuote(context.Background(), "6488")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if got, want := requested(), []string{"tse_6488.tw", "otc_6488.tw"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("requested %v, want %v", got, want)
	}

	if quote.Name != "環球晶" {
		t.Errorf("name = %q", quote.Name)
	}
	if quote.Price == nil || *quote.Price != 455 {
		t.Errorf("price should fall back to prev close, got %v", quote.Price)
	}
	if quote.Open == nil || *quote.Open != 456 || quote.High == nil || *quote.High != 460 {
		t.Errorf("unexpected open/high: %+v", quote)
	}
	if quote.Low != nil {
		t.Errorf("low should be absent, got %v", *quote.Low)
	}
	if quote.Volume == nil || *quote.Volume != 12 {
		t.Errorf("vol = %v, want 12", quote.Volume)
	}
}

func TestMISFetchQuote_ListedStopsAtFirstChannel(t *testing.T) {
	srv, requested := misServer(t, map[string]string{
		"tse_2330.tw": `{"msgArray":[{"c":"2330","n":"台積電","z":"795.0000","y":"790.0000","o":"791.0000","h":"800.0000","l":"789.0000","v":"25123456"}]}`,
	})
	client := newTestMISClient(srv.URL)

	quote, err := client.FetchQuote(context.Background(), "2330")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if got := requested(); len(got) != 1 {
		t.Fatalf("expected one request, got %v", got)
	}
	if *quote.Price != 795 || *quote.Prev != 790 || *quote.Volume != 25123 {
		t.Errorf("unexpected quote: price=%v prev=%v vol=%v", *quote.Price, *quote.Prev, *quote.Volume)
	}
}

func TestMISFetchQuote_EmptyIsNotFound(t *testing.T) {
	srv, _ := misServer(t, nil)
	client := newTestMISClient(srv.URL)

	_, err := client.FetchQuote(context.Background(), "9999")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMISFetchQuote_UpstreamErrorIsNotNotFound(t *testing.T) {
	srv, _ := misServer(t, map[string]string{
		"tse_2330.tw": "500",
		"otc_2330.tw": "500",
	})
	client := newTestMISClient(srv.URL)

	_, err := client.FetchQuote(context.Background(), "2330")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected an upstream error, got %v", err)
	}
}

func TestMISSnapshotMissingFields(t *testing.T) {
	quote := misSnapshot{Code: "2330"}.toQuote("2330")
	if quote.Name != "2330" {
		t.Errorf("name should fall back to the code, got %q", quote.Name)
	}
	if quote.Price != nil || quote.Prev != nil || quote.Open != nil || quote.High != nil || quote.Low != nil || quote.Volume != nil {
		t.Errorf("expected all numeric fields nil, got %+v", quote)
	}
}

func TestMISChannels(t *testing.T) {
	want := []string{"tse_00631l.tw", "otc_00631l.tw"}
	if got := misChannels("00631L"); !reflect.DeepEqual(got, want) {
		t.Fatalf("misChannels = %v, want %v", got, want)
	}
}
