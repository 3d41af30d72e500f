package jito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ghanemar/stakeledger/internal/types/numbers"
	"github.com/ghanemar/stakeledger/pkg/providerRegistry"
	"github.com/ghanemar/stakeledger/pkg/providers"
	"github.com/ghanemar/stakeledger/pkg/storage"
	"go.uber.org/zap"
)

const AdapterName = "jito"

const lamportsDecimals = 9

// MEV tips are auto-compounded into the tipped stake account, so they surface
// as restake events in the canonical model.
var eventTypeRules = map[string]storage.EventType{
	"tip_restake": storage.EventType_Restake,
}

type Adapter struct {
	httpClient *http.Client
	baseUrl    string
	apiKey     string
	logger     *zap.Logger
}

func NewAdapter(cfg *providerRegistry.ProviderConfig, l *zap.Logger) (providers.Adapter, error) {
	if cfg.BaseUrl == "" {
		return nil, fmt.Errorf("provider '%s' requires a base_url", cfg.ProviderName)
	}
	return &Adapter{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.GetTimeoutSecs()) * time.Second,
		},
		baseUrl: cfg.BaseUrl,
		apiKey:  cfg.ApiKey,
		logger:  l,
	}, nil
}

func (a *Adapter) Name() string {
	return AdapterName
}

func (a *Adapter) EventTypeRules() map[string]storage.EventType {
	return eventTypeRules
}

type tipRecord struct {
	TipId        string      `json:"tip_id"`
	Validator    string      `json:"validator"`
	StakeAccount string      `json:"stake_account"`
	Kind         string      `json:"kind"`
	Lamports     json.Number `json:"lamports"`
	BlockTime    int64       `json:"block_time"`
}

type tipPage struct {
	Tips       []json.RawMessage `json:"tips"`
	NextCursor string            `json:"next_cursor"`
}

func (a *Adapter) Fetch(ctx context.Context, req *providers.FetchRequest) (*providers.Page, error) {
	if req.Kind != providers.DataKind_Mev {
		return nil, providers.NewUpstreamError(AdapterName, 0,
			fmt.Errorf("data kind '%s' is not served by %s", req.Kind, AdapterName))
	}

	query := url.Values{}
	query.Set("epoch", strconv.FormatUint(req.Period.Index, 10))
	if req.Cursor != "" {
		query.Set("cursor", req.Cursor)
	}
	fullUrl := a.baseUrl + "/api/v1/mev_rewards?" + query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullUrl, http.NoBody)
	if err != nil {
		return nil, providers.NewUpstreamError(AdapterName, 0, err)
	}
	if a.apiKey != "" {
		httpReq.Header.Set("x-api-key", a.apiKey)
	}
	httpReq.Header.Set("Accept", "application/json")

	res, err := a.httpClient.Do(httpReq)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, providers.NewTimeoutError(AdapterName, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, providers.NewTimeoutError(AdapterName, err)
		}
		return nil, providers.NewUpstreamError(AdapterName, 0, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, providers.NewRateLimitError(AdapterName, res.StatusCode, nil)
	case res.StatusCode == http.StatusNotFound:
		return nil, providers.NewNotFoundError(AdapterName)
	case res.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(res.Body)
		return nil, providers.NewUpstreamError(AdapterName, res.StatusCode,
			fmt.Errorf("unexpected response: %s", string(body)))
	}

	var envelope tipPage
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, providers.NewUpstreamError(AdapterName, res.StatusCode, err)
	}

	records := make([]*providers.RawRecord, 0, len(envelope.Tips))
	for _, raw := range envelope.Tips {
		var tip tipRecord
		if err := json.Unmarshal(raw, &tip); err != nil {
			return nil, providers.NewUpstreamError(AdapterName, res.StatusCode, err)
		}

		amount, err := numbers.FromBaseUnits(tip.Lamports.String(), lamportsDecimals)
		if err != nil {
			a.logger.Sugar().Warnw("Skipping tip with unparseable lamports",
				zap.String("tipId", tip.TipId),
				zap.Error(err),
			)
			continue
		}

		records = append(records, &providers.RawRecord{
			PayloadId:     tip.TipId,
			ValidatorKey:  tip.Validator,
			StakerAddress: tip.StakeAccount,
			Action:        tip.Kind,
			Amount:        amount.String(),
			Timestamp:     time.Unix(tip.BlockTime, 0).UTC(),
			Raw:           raw,
		})
	}

	return &providers.Page{
		Records:    records,
		NextCursor: envelope.NextCursor,
	}, nil
}
