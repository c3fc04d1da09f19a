package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/decodetube/internal/gateway"
	"github.com/hitoshi/decodetube/internal/metrics"
	"github.com/hitoshi/decodetube/internal/model"
	"github.com/hitoshi/decodetube/internal/youtube"
)

// defaultFetchTimeout は要約取得のデフォルトタイムアウト。
const defaultFetchTimeout = 30 * time.Second

// TokenSource は認証トークンの取得元。session.Storeが実装する。
type TokenSource interface {
	Token(ctx context.Context) (token string, ok bool, err error)
}

// MachineConfig はMachineの依存関係と設定を保持する。
type MachineConfig struct {
	ClientID     string
	Gateway      gateway.SummaryGateway
	Tokens       TokenSource
	Metrics      metrics.MetricsCollector // nilの場合は記録しない
	BaseContext  context.Context          // 取得処理の親コンテキスト。nilの場合はBackground
	FetchTimeout time.Duration            // 0以下の場合は30秒
	Logger       *slog.Logger             // nilの場合はslog.Default()
}

// Machine は1クライアント分の結果ビューのステートマシン。
// 全メソッドは並行に呼び出してよい。
type Machine struct {
	config MachineConfig
	logger *slog.Logger

	mu      sync.Mutex
	current Snapshot
	cancel  context.CancelFunc // 進行中の取得のキャンセル関数
	changed chan struct{}      // 状態遷移のたびにcloseして差し替える
	closed  bool
}

// NewMachine はIdle状態のMachineを生成する。
func NewMachine(config MachineConfig) *Machine {
	if config.Metrics == nil {
		config.Metrics = metrics.Nop{}
	}
	if config.BaseContext == nil {
		config.BaseContext = context.Background()
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaultFetchTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Machine{
		config:  config,
		logger:  logger.With(slog.String("client_id", config.ClientID)),
		current: Snapshot{State: StateIdle},
		changed: make(chan struct{}),
	}
}

// Snapshot は現在の状態を返す。
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Submit はURLの送信を処理し、遷移後の状態を返す。
//
// 空入力の場合は状態を変えず、現在の状態に入力促進メッセージを添えて返す。
// それ以外は進行中の取得をキャンセルしてSubmittedから遷移をやり直す。
// 要約取得が必要な場合はResolvingを返し、取得はバックグラウンドで続く。
func (m *Machine) Submit(ctx context.Context, raw string) Snapshot {
	id, extractErr := youtube.Extract(raw)

	// バックエンドの問い合わせ中に他の呼び出しを止めないよう、ロックの外で読む。
	// 読み出し後に別の送信が割り込んでもSeqで区別される。
	var (
		token    string
		ok       bool
		tokenErr error
	)
	if extractErr == nil {
		token, ok, tokenErr = m.config.Tokens.Token(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if errors.Is(extractErr, model.ErrEmptyInput) {
		m.config.Metrics.RecordSubmission(metrics.OutcomeEmpty)
		snap := m.current
		snap.Err = model.ErrEmptyInput
		snap.Message = model.MessageEmptyInput
		return snap
	}

	m.cancelFetchLocked()
	seq := m.current.Seq + 1
	m.setLocked(Snapshot{Seq: seq, State: StateSubmitted, RawURL: raw})

	if extractErr != nil {
		m.config.Metrics.RecordSubmission(metrics.OutcomeInvalidURL)
		m.setLocked(Snapshot{
			Seq:     seq,
			State:   StateInvalidURL,
			RawURL:  raw,
			Err:     extractErr,
			Message: model.MessageMalformedURL,
		})
		return m.current
	}

	if tokenErr != nil {
		m.logger.Error("failed to read auth token",
			slog.String("error", tokenErr.Error()),
		)
		m.config.Metrics.RecordSubmission(metrics.OutcomeTransport)
		m.setLocked(Snapshot{
			Seq:     seq,
			State:   StateFetchFailed,
			RawURL:  raw,
			VideoID: id,
			Err:     fmt.Errorf("%w: %v", model.ErrTransportFailure, tokenErr),
			Message: model.MessageTransportFailure,
		})
		return m.current
	}

	if !ok {
		m.config.Metrics.RecordSubmission(metrics.OutcomeUnauthorized)
		m.setLocked(Snapshot{
			Seq:     seq,
			State:   StateIdle,
			RawURL:  raw,
			VideoID: id,
			Err:     model.ErrUnauthenticated,
			Message: model.MessageUnauthenticated,
		})
		return m.current
	}

	if m.closed {
		m.setLocked(Snapshot{
			Seq:     seq,
			State:   StateFetchFailed,
			RawURL:  raw,
			VideoID: id,
			Err:     fmt.Errorf("%w: view closed", model.ErrTransportFailure),
			Message: model.MessageTransportFailure,
		})
		return m.current
	}

	m.config.Metrics.RecordSubmission(metrics.OutcomeResolving)
	fetchCtx, cancel := context.WithTimeout(m.config.BaseContext, m.config.FetchTimeout)
	m.cancel = cancel
	m.setLocked(Snapshot{
		Seq:     seq,
		State:   StateResolving,
		RawURL:  raw,
		VideoID: id,
	})

	go m.fetch(fetchCtx, cancel, seq, id, token)

	return m.current
}

// Wait は指定したSeqの送信が確定するまで待ち、その時点の状態を返す。
// 新しい送信に置き換えられた場合やctxが終了した場合も待つのをやめる。
func (m *Machine) Wait(ctx context.Context, seq uint64) Snapshot {
	for {
		m.mu.Lock()
		snap := m.current
		changed := m.changed
		m.mu.Unlock()

		if snap.Seq != seq || snap.Settled() {
			return snap
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap
		}
	}
}

// Close は進行中の取得をキャンセルする。Close後のSubmitは取得を開始しない。
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cancelFetchLocked()
}

// fetch は要約を取得し、送信が置き換えられていなければ結果を反映する。
func (m *Machine) fetch(ctx context.Context, cancel context.CancelFunc, seq uint64, id model.VideoID, token string) {
	defer cancel()

	start := time.Now()
	text, err := m.config.Gateway.FetchSummary(ctx, id, token)
	elapsed := time.Since(start)

	m.mu.Lock()
	defer m.mu.Unlock()

	// 遅れて届いた古い結果は新しい状態を上書きしない
	if m.current.Seq != seq {
		m.config.Metrics.RecordSummaryFetch(metrics.OutcomeSuperseded, elapsed)
		m.logger.Debug("discarded superseded summary result",
			slog.String("video_id", id.String()),
			slog.Uint64("seq", seq),
		)
		return
	}
	m.cancel = nil

	next := Snapshot{
		Seq:     seq,
		RawURL:  m.current.RawURL,
		VideoID: id,
	}

	switch {
	case err == nil:
		m.config.Metrics.RecordSummaryFetch(metrics.OutcomeSuccess, elapsed)
		// 要約は平文として保持し、エスケープは描画時のテンプレートに任せる
		if text == "" {
			text = model.MessageNoSummary
		}
		next.State = StateLoaded
		next.Summary = text

	case errors.Is(err, model.ErrUnauthenticated):
		m.config.Metrics.RecordSummaryFetch(metrics.OutcomeUnauthorized, elapsed)
		next.State = StateIdle
		next.Err = model.ErrUnauthenticated
		next.Message = model.MessageUnauthenticated

	case errors.Is(err, model.ErrGatewayRejected):
		m.config.Metrics.RecordSummaryFetch(metrics.OutcomeRejected, elapsed)
		m.logger.Warn("summary gateway rejected request",
			slog.String("video_id", id.String()),
			slog.String("error", err.Error()),
		)
		next.State = StateFetchFailed
		next.Err = err
		next.Message = model.MessageGatewayRejected

	default:
		m.config.Metrics.RecordSummaryFetch(metrics.OutcomeTransport, elapsed)
		m.logger.Warn("summary fetch failed",
			slog.String("video_id", id.String()),
			slog.String("error", err.Error()),
		)
		if !errors.Is(err, model.ErrTransportFailure) {
			err = fmt.Errorf("%w: %v", model.ErrTransportFailure, err)
		}
		next.State = StateFetchFailed
		next.Err = err
		next.Message = model.MessageTransportFailure
	}

	m.setLocked(next)
}

// setLocked は状態を置き換え、待機中のWaitを起こす。m.muを保持して呼ぶ。
func (m *Machine) setLocked(s Snapshot) {
	m.current = s
	close(m.changed)
	m.changed = make(chan struct{})
}

// cancelFetchLocked は進行中の取得があればキャンセルする。m.muを保持して呼ぶ。
func (m *Machine) cancelFetchLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
