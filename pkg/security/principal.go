package security

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

// PermissionAll 拥有全部权限
const PermissionAll = "*"

// Principal 已认证的调用方
type Principal struct {
	UserID      string   `json:"userId"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Has 是否拥有权限 perm，"*" 视为拥有全部权限
func (p *Principal) Has(perm string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Permissions, PermissionAll) || slices.Contains(p.Permissions, perm)
}

// TokenVerifier 校验 bearer token 并返回调用方身份
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// TokenFromRequest 依次从 Authorization 头、?token= 参数、Sec-WebSocket-Protocol 中取 token
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := cutPrefixFold(h, "Bearer "); ok && t != "" {
			return strings.TrimSpace(t), nil
		}
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, nil
	}
	for _, p := range strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			return p, nil
		}
	}
	return "", ErrTokenMissing
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

type principalKey struct{}

// WithPrincipal 将身份写入 context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext 从 context 读取身份
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}
