package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误分类，决定请求边界上的响应码
type Kind int

const (
	KindInternal      Kind = iota // 未预期错误
	KindValidation                // 缺少或非法的请求字段
	KindAuthorization             // 关系或归属校验失败
	KindStateConflict             // 当前状态下不允许的状态迁移
	KindNotFound                  // 资源不存在
	KindDependency                // 外部依赖（资源存储等）失败
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindStateConflict:
		return "state_conflict"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// Error 业务错误
// Reason 是机器可读的短原因串，客户端据此展示提示
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is 按 Kind + Reason 匹配，使包装后的错误仍能与哨兵错误比较
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// Wrap 基于哨兵错误附加底层原因
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Reason: e.Reason, Message: e.Message, Err: err}
}

func newError(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Validation 构造校验错误
func Validation(reason, message string) *Error {
	return newError(KindValidation, reason, message)
}

var (
	ErrNotFriends    = newError(KindAuthorization, "not_friends", "you can only interact with your friends")
	ErrForbidden     = newError(KindAuthorization, "forbidden", "you can only delete your own messages")
	ErrUnauthorized  = newError(KindAuthorization, "unauthorized", "authentication required")
	ErrBadCredential = newError(KindAuthorization, "invalid_credentials", "invalid email or password")

	ErrAlreadyFriends       = newError(KindStateConflict, "already_friends", "already friends with this user")
	ErrRequestAlreadyExists = newError(KindStateConflict, "request_already_exists", "a friend request between these users already exists")
	ErrRequestNotFound      = newError(KindStateConflict, "request_not_found", "friend request not found")
	ErrNotFriendsRemoval    = newError(KindStateConflict, "not_friends", "user is not in friends list")
	ErrEmailTaken           = newError(KindStateConflict, "email_taken", "email already registered")

	ErrMessageNotFound = newError(KindNotFound, "message_not_found", "message not found")
	ErrUserNotFound    = newError(KindNotFound, "user_not_found", "user not found")

	ErrAssetUploadFailed = newError(KindDependency, "asset_upload_failed", "failed to upload image")

	ErrSelfFriendship = Validation("cannot_befriend_self", "cannot send a friend request to yourself")
	ErrEmptyMessage   = Validation("empty_message", "message must contain text or an image")
	ErrQueryRequired  = Validation("query_required", "search query is required")
	ErrInvalidImage   = Validation("invalid_image", "image must be a base64 encoded picture within the size limit")
	ErrMissingFields  = Validation("missing_fields", "all fields are required")
	ErrWeakPassword   = Validation("password_too_short", "password must be at least 6 characters")
)

// KindOf 返回错误分类，非业务错误视为内部错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf 返回机器可读原因
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal_error"
}
