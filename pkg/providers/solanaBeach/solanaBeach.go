package solanaBeach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ghanemar/stakeledger/internal/types/numbers"
	"github.com/ghanemar/stakeledger/pkg/providerRegistry"
	"github.com/ghanemar/stakeledger/pkg/providers"
	"github.com/ghanemar/stakeledger/pkg/storage"
	"go.uber.org/zap"
)

const AdapterName = "solanabeach"

// Solana native decimals; the API reports amounts in lamports.
const lamportsDecimals = 9

var eventTypeRules = map[string]storage.EventType{
	"delegate":   storage.EventType_Stake,
	"deactivate": storage.EventType_Unstake,
	"redelegate": storage.EventType_Restake,
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

type recordEnvelope struct {
	Id        string          `json:"id"`
	Validator string          `json:"validator"`
	Staker    string          `json:"staker"`
	Action    string          `json:"action"`
	Lamports  json.Number     `json:"lamports"`
	Timestamp int64           `json:"timestamp"`
	Raw       json.RawMessage `json:"-"`
}

type pageEnvelope struct {
	Data       []json.RawMessage `json:"data"`
	NextCursor string            `json:"next_cursor"`
}

func (a *Adapter) pathForKind(kind providers.DataKind, epoch uint64) (string, error) {
	switch kind {
	case providers.DataKind_Rewards:
		return fmt.Sprintf("/v1/epoch/%d/stake-movements", epoch), nil
	case providers.DataKind_Fees:
		return fmt.Sprintf("/v1/epoch/%d/fees", epoch), nil
	case providers.DataKind_Meta:
		return fmt.Sprintf("/v1/epoch/%d", epoch), nil
	default:
		return "", fmt.Errorf("data kind '%s' is not served by %s", kind, AdapterName)
	}
}

func (a *Adapter) Fetch(ctx context.Context, req *providers.FetchRequest) (*providers.Page, error) {
	path, err := a.pathForKind(req.Kind, req.Period.Index)
	if err != nil {
		return nil, providers.NewUpstreamError(AdapterName, 0, err)
	}

	query := url.Values{}
	if req.Cursor != "" {
		query.Set("cursor", req.Cursor)
	}
	fullUrl := a.baseUrl + path
	if len(query) > 0 {
		fullUrl = fullUrl + "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullUrl, http.NoBody)
	if err != nil {
		return nil, providers.NewUpstreamError(AdapterName, 0, err)
	}
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	httpReq.Header.Set("Accept", "application/json")

	res, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
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

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, providers.NewUpstreamError(AdapterName, res.StatusCode, err)
	}

	if req.Kind == providers.DataKind_Meta {
		return metaPage(req.Period, bodyBytes), nil
	}

	var envelope pageEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return nil, providers.NewUpstreamError(AdapterName, res.StatusCode, err)
	}

	records := make([]*providers.RawRecord, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		var rec recordEnvelope
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, providers.NewUpstreamError(AdapterName, res.StatusCode, err)
		}

		amount, err := numbers.FromBaseUnits(rec.Lamports.String(), lamportsDecimals)
		if err != nil {
			a.logger.Sugar().Warnw("Skipping record with unparseable lamports",
				zap.String("payloadId", rec.Id),
				zap.Error(err),
			)
			continue
		}

		records = append(records, &providers.RawRecord{
			PayloadId:     rec.Id,
			ValidatorKey:  rec.Validator,
			StakerAddress: rec.Staker,
			Action:        rec.Action,
			Amount:        amount.String(),
			Timestamp:     time.Unix(rec.Timestamp, 0).UTC(),
			Raw:           raw,
		})
	}

	return &providers.Page{
		Records:    records,
		NextCursor: envelope.NextCursor,
	}, nil
}

// metaPage wraps an epoch metadata document in a single raw record so callers
// resolving period boundaries get the payload with provenance intact.
func metaPage(period providers.Period, body []byte) *providers.Page {
	return &providers.Page{
		Records: []*providers.RawRecord{
			{
				PayloadId: fmt.Sprintf("epoch-meta-%d", period.Index),
				Action:    "meta",
				Raw:       body,
			},
		},
	}
}

func classifyTransportError(err error) *providers.ProviderError {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return providers.NewTimeoutError(AdapterName, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewTimeoutError(AdapterName, err)
	}
	return providers.NewUpstreamError(AdapterName, 0, err)
}
