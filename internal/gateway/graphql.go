// Package gateway は外部ゲートウェイ（認証・要約）のHTTPクライアントを提供する。
//
// 認証ゲートウェイと要約ゲートウェイ（graphql版）はHasura互換のGraphQLエンドポイント、
// 要約ゲートウェイ（webhook版）はOpenAI互換レスポンスを返すWebhookを想定する。
// エラーはmodel.ErrGatewayRejected（構造化エラー応答）と
// model.ErrTransportFailure（通信・パース失敗、非OKステータス）のどちらかでラップして返す。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hitoshi/decodetube/internal/model"
)

const (
	// adminSecretHeader はHasuraの管理シークレットヘッダー。
	adminSecretHeader = "x-hasura-admin-secret"
	// defaultMaxResponseSize はレスポンスボディの読み取り上限。
	defaultMaxResponseSize int64 = 1 << 20
	// userAgent は外向きリクエストのUser-Agent。
	userAgent = "DecodeTube/1.0"
)

// ClientConfig はゲートウェイクライアント共通の設定。
type ClientConfig struct {
	EndpointURL     string
	AdminSecret     string // 空の場合はヘッダーを送らない
	HTTPClient      *http.Client
	MaxResponseSize int64
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = defaultMaxResponseSize
	}
	return c
}

// RejectedError はゲートウェイが返した構造化エラーを表す。
// errors.Is(err, model.ErrGatewayRejected) が真になる。
type RejectedError struct {
	Message string   // 先頭のエラーメッセージ。UIに表示する
	Details []string // errors配列の全メッセージ
}

// Error はerrorインターフェースを実装する。
func (e *RejectedError) Error() string {
	if len(e.Details) > 1 {
		return fmt.Sprintf("%s: %s", model.ErrGatewayRejected, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("%s: %s", model.ErrGatewayRejected, e.Message)
}

// newRejectedError はerrors配列からRejectedErrorを生成する。
func newRejectedError(errs []graphQLError) *RejectedError {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Message != "" {
			msgs = append(msgs, e.Message)
		}
	}
	if len(msgs) == 0 {
		return &RejectedError{Message: "unknown error"}
	}
	return &RejectedError{Message: msgs[0], Details: msgs}
}

// Unwrap はmodel.ErrGatewayRejectedを返す。
func (e *RejectedError) Unwrap() error {
	return model.ErrGatewayRejected
}

// transportError は通信系の失敗をmodel.ErrTransportFailureでラップする。
func transportError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrTransportFailure, fmt.Sprintf(format, args...))
}

// graphQLRequest はGraphQLリクエストボディ。
// 入力値はクエリ文字列に埋め込まず、必ずvariablesで渡す。
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLError はGraphQLのerrors配列の要素。
type graphQLError struct {
	Message string `json:"message"`
}

// graphQLResponse はGraphQLレスポンスの外枠。
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// graphQLClient はGraphQLエンドポイントへのPOSTを行う。
type graphQLClient struct {
	config ClientConfig
}

func newGraphQLClient(config ClientConfig) *graphQLClient {
	return &graphQLClient{config: config.withDefaults()}
}

// do はGraphQLリクエストを送信し、dataをoutにデコードする。
// errors配列が空でなければRejectedError、それ以外の失敗はtransportエラーを返す。
// bearerが空でない場合はAuthorizationヘッダーを付与する。
func (c *graphQLClient) do(ctx context.Context, query string, vars map[string]any, bearer string, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.config.AdminSecret != "" {
		req.Header.Set(adminSecretHeader, c.config.AdminSecret)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return transportError("graphql request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseSize))
	if err != nil {
		return transportError("failed to read graphql response: %v", err)
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return transportError("graphql endpoint returned status %d", resp.StatusCode)
		}
		return transportError("failed to parse graphql response: %v", err)
	}

	// HTTPステータスに関わらず、errors配列があればゲートウェイの拒否として扱う
	if len(gqlResp.Errors) > 0 {
		return newRejectedError(gqlResp.Errors)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transportError("graphql endpoint returned status %d", resp.StatusCode)
	}

	if out == nil || len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return transportError("failed to decode graphql data: %v", err)
	}

	return nil
}
