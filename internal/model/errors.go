// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError はアプリケーション全体の統一エラーフォーマットを表す。
// Messageはそのままフラッシュメッセージやエラーページに表示できる文面とし、
// 内部詳細（スタックトレース等）は含めない。
type AppError struct {
	Code    string // エラーコード
	Message string // ユーザー向けメッセージ
	Status  int    // 対応するHTTPステータスコード
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeMissingEmailClaim       = "MISSING_EMAIL_CLAIM"
	ErrCodeProviderExchangeFailure = "PROVIDER_EXCHANGE_FAILURE"
	ErrCodeConflict                = "CONFLICT"
	ErrCodeValidation              = "VALIDATION_FAILURE"
	ErrCodeNotFound                = "NOT_FOUND"
	ErrCodeInternal                = "INTERNAL_ERROR"
)

// NewInvalidCredentialsError はローカル認証失敗エラーを生成する。
// ユーザー名とパスワードのどちらが誤っていたかは区別せず、常に同一の文面を返す。
func NewInvalidCredentialsError() *AppError {
	return &AppError{
		Code:    ErrCodeInvalidCredentials,
		Message: "ユーザー名またはパスワードが正しくありません。",
		Status:  http.StatusUnauthorized,
	}
}

// NewMissingEmailClaimError はIdPが検証済みメールアドレスを提供しなかった場合のエラーを生成する。
func NewMissingEmailClaimError() *AppError {
	return &AppError{
		Code:    ErrCodeMissingEmailClaim,
		Message: "外部アカウントに検証済みメールアドレスが登録されていないため、ログインできません。",
		Status:  http.StatusBadRequest,
	}
}

// NewProviderExchangeError はIdPとのトークン交換・プロフィール取得失敗エラーを生成する。
// リトライは行わず、ユーザーにログインのやり直しを促す。
func NewProviderExchangeError() *AppError {
	return &AppError{
		Code:    ErrCodeProviderExchangeFailure,
		Message: "外部アカウントでの認証に失敗しました。もう一度お試しください。",
		Status:  http.StatusBadGateway,
	}
}

// NewConflictError はストアの一意性制約違反エラーを生成する。
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

// NewValidationError は入力値の検証失敗エラーを生成する。
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError() *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: "ページが見つかりません。",
		Status:  http.StatusNotFound,
	}
}

// NewInternalError は予期しない内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "内部エラーが発生しました。しばらく待ってから再度お試しください。",
		Status:  http.StatusInternalServerError,
	}
}

// AsAppError はerrをAppErrorとして取り出す。
// AppErrorでない場合は内部エラーとして扱う（詳細は呼び出し側でログに記録する）。
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError()
}

// IsCode はerrが指定コードのAppErrorかどうかを判定する。
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsConflict はerrが一意性制約違反かどうかを判定する。
func IsConflict(err error) bool {
	return IsCode(err, ErrCodeConflict)
}
