package discovery

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"product-service": "http://localhost:8082/"}

	baseURL, err := r.Resolve(context.Background(), "product-service")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8082", baseURL)

	_, err = r.Resolve(context.Background(), "payment-service")
	assert.True(t, errors.Is(err, ErrServiceNotFound))
}

func TestWithFallback(t *testing.T) {
	failing := ResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("registry unavailable")
	})
	r := WithFallback(failing, StaticResolver{"payment-service": "http://payment:8083"})

	baseURL, err := r.Resolve(context.Background(), "payment-service")
	require.NoError(t, err)
	assert.Equal(t, "http://payment:8083", baseURL)

	_, err = r.Resolve(context.Background(), "product-service")
	assert.EqualError(t, err, "registry unavailable")
}
