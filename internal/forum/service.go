// Package forum は質問・回答・投票のアプリケーションサービスを提供する。
package forum

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/repository"
	"github.com/hitoshi/askboard/internal/security"
)

const (
	maxTitleLength = 200
	maxBodyLength  = 20000

	defaultListLimit = 50
)

// Service は質問・回答・投票のユースケースを提供する。
// 本文は保存前にサニタイズされ、ユーザーの活動カウンタは
// ベストエフォートで更新される（カウンタ更新失敗は投稿自体を失敗させない）。
type Service struct {
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	votes     repository.VoteRepository
	users     repository.UserRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	votes repository.VoteRepository,
	users repository.UserRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		questions: questions,
		answers:   answers,
		votes:     votes,
		users:     users,
		sanitizer: sanitizer,
	}
}

// Ask は質問を投稿する。タイトルと本文は必須。
func (s *Service) Ask(ctx context.Context, authorID, title, body string) (*model.Question, error) {
	title = strings.TrimSpace(s.sanitizer.SanitizeText(title))
	body = strings.TrimSpace(s.sanitizer.Sanitize(body))

	if title == "" {
		return nil, model.NewValidationError("タイトルを入力してください。")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, model.NewValidationError("タイトルが長すぎます。")
	}
	if body == "" {
		return nil, model.NewValidationError("本文を入力してください。")
	}
	if utf8.RuneCountInString(body) > maxBodyLength {
		return nil, model.NewValidationError("本文が長すぎます。")
	}

	now := time.Now()
	question := &model.Question{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.questions.Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	// カウンタ更新はベストエフォート。失敗してもログのみ。
	if err := s.users.IncrementCounter(ctx, authorID, model.CounterQuestionsAsked, 1); err != nil {
		slog.Warn("failed to increment questions counter",
			slog.String("user_id", authorID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("question posted",
		slog.String("question_id", question.ID),
		slog.String("author_id", authorID),
	)
	return question, nil
}

// Get は質問と回答一覧を取得する。質問が存在しない場合はNotFoundを返す。
func (s *Service) Get(ctx context.Context, questionID string) (*model.QuestionWithAuthor, []model.AnswerWithAuthor, error) {
	question, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find question: %w", err)
	}
	if question == nil {
		return nil, nil, model.NewNotFoundError()
	}

	answers, err := s.answers.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list answers: %w", err)
	}

	return question, answers, nil
}

// ListRecent は新着順の質問一覧を取得する。
func (s *Service) ListRecent(ctx context.Context) ([]model.QuestionWithAuthor, error) {
	questions, err := s.questions.ListRecent(ctx, defaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

// Answer は質問に回答を投稿する。対象の質問が存在しない場合はNotFoundを返す。
func (s *Service) Answer(ctx context.Context, authorID, questionID, body string) (*model.Answer, error) {
	body = strings.TrimSpace(s.sanitizer.Sanitize(body))
	if body == "" {
		return nil, model.NewValidationError("回答を入力してください。")
	}
	if utf8.RuneCountInString(body) > maxBodyLength {
		return nil, model.NewValidationError("回答が長すぎます。")
	}

	question, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find question: %w", err)
	}
	if question == nil {
		return nil, model.NewNotFoundError()
	}

	answer := &model.Answer{
		ID:         uuid.New().String(),
		QuestionID: questionID,
		AuthorID:   authorID,
		Body:       body,
		CreatedAt:  time.Now(),
	}

	if err := s.answers.Create(ctx, answer); err != nil {
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	if err := s.users.IncrementCounter(ctx, authorID, model.CounterAnswersGiven, 1); err != nil {
		slog.Warn("failed to increment answers counter",
			slog.String("user_id", authorID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("answer posted",
		slog.String("answer_id", answer.ID),
		slog.String("question_id", questionID),
		slog.String("author_id", authorID),
	)
	return answer, nil
}

// Vote は回答に投票する。同一ユーザーによる再投票は上書きとなり（冪等）、
// 回答者の受信カウンタは前回値との差分だけ調整される。
// 対象の回答が存在しない場合はNotFoundを返す。
// 戻り値は回答が属する質問のID（リダイレクト先の決定に使用する）。
func (s *Service) Vote(ctx context.Context, userID, answerID string, value model.VoteValue) (string, error) {
	if value != model.VoteUp && value != model.VoteDown {
		return "", model.NewValidationError("投票値が不正です。")
	}

	answer, err := s.answers.FindByID(ctx, answerID)
	if err != nil {
		return "", fmt.Errorf("failed to find answer: %w", err)
	}
	if answer == nil {
		return "", model.NewNotFoundError()
	}

	now := time.Now()
	vote := &model.Vote{
		UserID:    userID,
		AnswerID:  answerID,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	previous, err := s.votes.Upsert(ctx, vote)
	if err != nil {
		return "", fmt.Errorf("failed to upsert vote: %w", err)
	}

	// 同じ向きへの再投票はカウンタを動かさない
	if previous == value {
		return answer.QuestionID, nil
	}

	// 前回の投票を取り消し、新しい投票を加算する
	if previous != 0 {
		s.adjustVoteCounter(ctx, answer.AuthorID, previous, -1)
	}
	s.adjustVoteCounter(ctx, answer.AuthorID, value, 1)

	return answer.QuestionID, nil
}

// adjustVoteCounter は回答者の受信カウンタをベストエフォートで調整する。
func (s *Service) adjustVoteCounter(ctx context.Context, authorID string, value model.VoteValue, delta int) {
	counter := model.CounterUpvotesReceived
	if value == model.VoteDown {
		counter = model.CounterDownvotesReceived
	}
	if err := s.users.IncrementCounter(ctx, authorID, counter, delta); err != nil {
		slog.Warn("failed to adjust vote counter",
			slog.String("user_id", authorID),
			slog.String("counter", string(counter)),
			slog.String("error", err.Error()),
		)
	}
}
