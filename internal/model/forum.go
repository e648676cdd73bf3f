// Package model はドメインモデルを定義する。
package model

import "time"

// Question は投稿された質問を表す。
type Question struct {
	ID        string
	AuthorID  string
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Answer は質問に対する回答を表す。
// Upvotes / Downvotes は votes テーブルから導出される表示用の集計値。
type Answer struct {
	ID         string
	QuestionID string
	AuthorID   string
	Body       string
	Upvotes    int
	Downvotes  int
	CreatedAt  time.Time
}

// VoteValue は投票の向きを表す。+1（アップボート）または-1（ダウンボート）。
type VoteValue int

const (
	// VoteUp はアップボート。
	VoteUp VoteValue = 1
	// VoteDown はダウンボート。
	VoteDown VoteValue = -1
)

// Vote はユーザーの回答に対する投票を表す。
// (user_id, answer_id) の組は一意であり、再投票は上書きとなる。
type Vote struct {
	UserID    string
	AnswerID  string
	Value     VoteValue
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuestionWithAuthor は質問と投稿者名を結合した表示用の構造体。
type QuestionWithAuthor struct {
	Question
	AuthorName  string
	AnswerCount int
}

// AnswerWithAuthor は回答と投稿者名を結合した表示用の構造体。
type AnswerWithAuthor struct {
	Answer
	AuthorName string
}
