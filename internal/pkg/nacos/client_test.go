package nacos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerConfigs(t *testing.T) {
	configs, err := ParseServerConfigs("10.0.0.1:8848, 10.0.0.2:8849,")
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "10.0.0.1", configs[0].IpAddr)
	assert.Equal(t, uint64(8848), configs[0].Port)
	assert.Equal(t, uint64(8849), configs[1].Port)

	for _, bad := range []string{"", "10.0.0.1", "10.0.0.1:port", "a:1:2"} {
		_, err := ParseServerConfigs(bad)
		assert.Error(t, err, bad)
	}
}
