package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sashabaranov/go-openai"

	"github.com/hitoshi/decodetube/internal/model"
)

// Variant は要約ゲートウェイの種類。デプロイごとにどちらか一方のみを使う。
type Variant string

const (
	// VariantGraphQL は認証付きGraphQLミューテーション。
	VariantGraphQL Variant = "graphql"
	// VariantWebhook は認証なしの公開Webhook。
	VariantWebhook Variant = "webhook"
)

// ParseVariant は設定値をVariantに変換する。
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantGraphQL, VariantWebhook:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("unknown summary gateway variant %q (want %q or %q)", s, VariantGraphQL, VariantWebhook)
	}
}

// SummaryGateway は動画IDから要約テキストを取得する。
// 要約フィールドが存在しない場合は空文字列とnilを返し、代替表示は呼び出し側が決める。
type SummaryGateway interface {
	FetchSummary(ctx context.Context, videoID model.VideoID, token string) (string, error)
}

// NewSummaryGateway は設定に応じたSummaryGatewayを生成する。
func NewSummaryGateway(variant Variant, config ClientConfig) (SummaryGateway, error) {
	switch variant {
	case VariantGraphQL:
		return NewGraphQLSummaryGateway(config), nil
	case VariantWebhook:
		return NewWebhookSummaryGateway(config), nil
	default:
		return nil, fmt.Errorf("unknown summary gateway variant %q", variant)
	}
}

const descriptionMutation = `mutation Description($videoId: String!) {
  description(videoId: $videoId) {
    output
  }
}`

// descriptionData はdescriptionミューテーションのdata部。
type descriptionData struct {
	Description *struct {
		Output *string `json:"output"`
	} `json:"description"`
}

// GraphQLSummaryGateway は認証付きGraphQLミューテーションで要約を取得する。
type GraphQLSummaryGateway struct {
	client *graphQLClient
}

// NewGraphQLSummaryGateway はGraphQLSummaryGatewayを生成する。
func NewGraphQLSummaryGateway(config ClientConfig) *GraphQLSummaryGateway {
	return &GraphQLSummaryGateway{client: newGraphQLClient(config)}
}

// FetchSummary はBearerトークン付きでdescriptionミューテーションを呼び出す。
// トークンが空の場合はネットワーク呼び出しを行わずmodel.ErrUnauthenticatedを返す。
func (g *GraphQLSummaryGateway) FetchSummary(ctx context.Context, videoID model.VideoID, token string) (string, error) {
	if token == "" {
		return "", model.ErrUnauthenticated
	}

	var data descriptionData
	vars := map[string]any{"videoId": videoID.String()}
	if err := g.client.do(ctx, descriptionMutation, vars, token, &data); err != nil {
		return "", fmt.Errorf("fetch summary %s: %w", videoID, err)
	}

	if data.Description == nil || data.Description.Output == nil {
		return "", nil
	}
	return *data.Description.Output, nil
}

// WebhookSummaryGateway は公開WebhookへのGETで要約を取得する。
// レスポンスはOpenAIのChat Completion形式（choices[].message.content）。
type WebhookSummaryGateway struct {
	config ClientConfig
}

// NewWebhookSummaryGateway はWebhookSummaryGatewayを生成する。
func NewWebhookSummaryGateway(config ClientConfig) *WebhookSummaryGateway {
	return &WebhookSummaryGateway{config: config.withDefaults()}
}

// FetchSummary はvideo_idクエリ付きでWebhookを呼び出す。トークンは使わない。
func (g *WebhookSummaryGateway) FetchSummary(ctx context.Context, videoID model.VideoID, _ string) (string, error) {
	reqURL, err := url.Parse(g.config.EndpointURL)
	if err != nil {
		return "", fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	q := reqURL.Query()
	q.Set("video_id", videoID.String())
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.config.HTTPClient.Do(req)
	if err != nil {
		return "", transportError("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", transportError("webhook returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, g.config.MaxResponseSize))
	if err != nil {
		return "", transportError("failed to read webhook response: %v", err)
	}

	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", transportError("failed to parse webhook response: %v", err)
	}

	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

// compile-time interface check
var (
	_ SummaryGateway = (*GraphQLSummaryGateway)(nil)
	_ SummaryGateway = (*WebhookSummaryGateway)(nil)
)
