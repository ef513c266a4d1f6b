// internal/pkg/discovery/resolver.go
package discovery

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

var ErrServiceNotFound = errors.New("service not found")

// Resolver 将逻辑服务名解析为 base URL，例如 http://10.0.0.3:8080
type Resolver interface {
	Resolve(ctx context.Context, service string) (string, error)
}

// Registrar 负责把当前实例注册到注册中心
type Registrar interface {
	Register(service, ip string, port int) error
	Deregister(service, ip string, port int) error
}

// StaticResolver 使用配置文件中写死的地址
type StaticResolver map[string]string

func (r StaticResolver) Resolve(_ context.Context, service string) (string, error) {
	baseURL, ok := r[service]
	if !ok || baseURL == "" {
		return "", errors.Wrapf(ErrServiceNotFound, "%q", service)
	}
	return strings.TrimRight(baseURL, "/"), nil
}

// ResolverFunc 适配普通函数
type ResolverFunc func(ctx context.Context, service string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, service string) (string, error) {
	return f(ctx, service)
}

// WithFallback 先查 primary，失败时退回到 fallback（通常是静态配置）
func WithFallback(primary, fallback Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context, service string) (string, error) {
		baseURL, err := primary.Resolve(ctx, service)
		if err == nil {
			return baseURL, nil
		}
		if fb, fbErr := fallback.Resolve(ctx, service); fbErr == nil {
			return fb, nil
		}
		return "", err
	})
}
