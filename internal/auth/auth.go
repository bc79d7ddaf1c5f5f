package auth

import (
	"context"

	"github.com/GOSC-CNIC/vms/internal/errors"
)

// 定义 context key
type contextKey string

const (
	// UserIDKey 用户ID的context key
	UserIDKey contextKey = "user_id"
	// UsernameKey 用户名的context key
	UsernameKey contextKey = "username"
	// UserRoleKey 用户角色的context key
	UserRoleKey contextKey = "user_role"
)

// Role 用户角色
type Role string

const (
	RoleUser Role = "user"
	// RoleFederalAdmin 联邦管理员，可以访问所有订单和计量单
	RoleFederalAdmin Role = "federal_admin"
)

// Requester 当前请求用户
type Requester struct {
	UserID   string
	Username string
	Role     Role
}

// IsFederalAdmin 是否联邦管理员
func (r Requester) IsFederalAdmin() bool {
	return r.Role == RoleFederalAdmin
}

// WithRequester 将请求用户注入context
func WithRequester(ctx context.Context, userID, username string, role Role) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UsernameKey, username)
	return context.WithValue(ctx, UserRoleKey, role)
}

// FromContext 从context中获取请求用户
func FromContext(ctx context.Context) (Requester, bool) {
	uid, ok := ctx.Value(UserIDKey).(string)
	if !ok || uid == "" {
		return Requester{}, false
	}
	username, _ := ctx.Value(UsernameKey).(string)
	role, _ := ctx.Value(UserRoleKey).(Role)
	if role == "" {
		role = RoleUser
	}
	return Requester{UserID: uid, Username: username, Role: role}, true
}

// RequireRequester 获取请求用户，未认证时返回AccessDenied
func RequireRequester(ctx context.Context) (Requester, error) {
	r, ok := FromContext(ctx)
	if !ok {
		return Requester{}, errors.AccessDenied("未认证的请求")
	}
	return r, nil
}

// CheckOwnership 校验当前用户是否可以访问指定用户的数据，
// 只能访问自己的数据，联邦管理员可以访问所有
func CheckOwnership(ctx context.Context, userID string) error {
	r, err := RequireRequester(ctx)
	if err != nil {
		return err
	}
	if r.IsFederalAdmin() {
		return nil
	}
	if r.UserID != userID {
		return errors.AccessDenied("您没有访问权限")
	}
	return nil
}
