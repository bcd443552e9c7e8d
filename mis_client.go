package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const providerMIS = "mis"

// misResponse is the getStockInfo.jsp payload; every field is a string and
// "-" marks a value that is not available yet.
type misResponse struct {
	MsgArray []misSnapshot `json:"msgArray"`
	RtCode   string        `json:"rtcode"`
	RtMsg    string        `json:"rtmessage"`
}

type misSnapshot struct {
	Code      string `json:"c"`
	Name      string `json:"n"`
	LastPrice string `json:"z"`
	PrevClose string `json:"y"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
}

// MISClient reads real-time snapshots from the exchange's MIS service.
type MISClient struct {
	client  *resty.Client
	logger  *zap.Logger
	metrics *Metrics
}

func NewMISClient(cfg *Config, logger *zap.Logger, metrics *Metrics) *MISClient {
	return &MISClient{
		client:  newUpstreamClient(cfg.Upstream.MISBaseURL, cfg.Upstream.UserAgent, cfg.Upstream.QuoteTimeout),
		logger:  logger.Named("mis"),
		metrics: metrics,
	}
}

// misChannels lists the exchange channels to try: listed first, then OTC.
func misChannels(code string) []string {
	code = strings.ToLower(code)
	return []string{"tse_" + code + ".tw", "otc_" + code + ".tw"}
}

// FetchQuote returns the first channel with a snapshot. ErrNotFound means
// every channel answered with an empty msgArray; transport errors are
// returned as-is.
func (m *MISClient) FetchQuote(ctx context.Context, code string) (*Quote, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var lastErr error
	for _, channel := range misChannels(code) {
		started := time.Now()
		snapshot, err := m.fetchChannel(ctx, channel)
		if err != nil {
			m.metrics.observeUpstream(providerMIS, outcomeError, started)
			m.logger.Warn("quote channel failed", zap.String("code", code), zap.String("channel", channel), zap.Error(err))
			lastErr = err
			continue
		}
		if snapshot == nil {
			m.metrics.observeUpstream(providerMIS, outcomeEmpty, started)
			continue
		}
		m.metrics.observeUpstream(providerMIS, outcomeOK, started)
		return snapshot.toQuote(code), nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("quote %s: %w", code, lastErr)
	}
	return nil, fmt.Errorf("quote %s: %w", code, ErrNotFound)
}

func (m *MISClient) fetchChannel(ctx context.Context, channel string) (*misSnapshot, error) {
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ex_ch": channel,
			"json":  "1",
			"delay": "0",
		}).
		Get("/stock/api/getStockInfo.jsp")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var payload misResponse
	if err := decodeUpstreamJSON(resp.Body(), &payload); err != nil {
		return nil, err
	}
	if len(payload.MsgArray) == 0 {
		return nil, nil
	}
	return &payload.MsgArray[0], nil
}

func (s misSnapshot) toQuote(code string) *Quote {
	q := &Quote{
		Name:  strings.TrimSpace(s.Name),
		Price: parseOptionalNumber(s.LastPrice),
		Prev:  parseOptionalNumber(s.PrevClose),
		Open:  parseOptionalNumber(s.Open),
		High:  parseOptionalNumber(s.High),
		Low:   parseOptionalNumber(s.Low),
	}
	if q.Name == "" {
		q.Name = code
	}
	// pre-market there is no trade print yet
	if q.Price == nil {
		q.Price = q.Prev
	}
	if v, err := parseNumber(s.Volume); err == nil {
		vol := sharesToThousands(v)
		q.Volume = &vol
	}
	return q
}
