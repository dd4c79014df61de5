package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/wholesale_backend/appctx"
)

var (
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyRole          = appctx.ContextKeyRole
	ContextKeyCartSession   = appctx.ContextKeyCartSession
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRole)
}

func GetCartSessionFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCartSession)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyRole, role)
}

func SetCartSessionInContext(ctx context.Context, sessionId string) context.Context {
	return appctx.Set(ctx, ContextKeyCartSession, sessionId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// User is the identity the session provider exposes to the engine.
type User struct {
	Id   int
	Role string
}

var ErrNoCurrentUser = errors.New("no authenticated user in context")

func CurrentUser(ctx context.Context) (User, error) {
	userId, ok := GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return User{}, ErrNoCurrentUser
	}
	role, _ := GetRoleFromContext(ctx)
	return User{Id: userId, Role: role}, nil
}
