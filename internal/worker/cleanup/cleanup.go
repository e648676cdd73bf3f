// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// 絶対有効期限を超過したセッション行を定期バッチで削除する。
// 期限切れセッションはリクエスト経路でも無効として扱われるため、
// このジョブはストレージ回収のみを担い、削除の遅延は動作に影響しない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionSweeper は期限切れセッションの一括削除に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SweepRecorder はスイープ結果のメトリクス記録に必要なインターフェース。
// metrics.Collectorの部分集合として定義する。
type SweepRecorder interface {
	RecordSessionsSwept(count int64)
}

// nopRecorder は記録を行わないSweepRecorder実装。
type nopRecorder struct{}

func (nopRecorder) RecordSessionsSwept(count int64) {}

// SweepJob は期限切れセッションの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type SweepJob struct {
	sessions SessionSweeper
	recorder SweepRecorder
	logger   *slog.Logger
}

// NewSweepJob は新しいSweepJobを生成する。recorderがnilの場合は記録を行わない。
func NewSweepJob(sessions SessionSweeper, recorder SweepRecorder, logger *slog.Logger) *SweepJob {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &SweepJob{
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
	}
}

// Run は期限切れセッションを一括削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SweepJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションスイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to sweep expired sessions: %w", err)
	}

	j.recorder.RecordSessionsSwept(deleted)

	duration := time.Since(start)
	j.logger.Info("セッションスイープが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔でスイープを繰り返し実行する（ブロッキング）。
// 起動直後に1回実行し、以降はinterval毎に実行する。
// コンテキストのキャンセルで停止する。
func (j *SweepJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("session sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("session sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
