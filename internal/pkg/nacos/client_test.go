package nacos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerConfigs(t *testing.T) {
	configs, err := ParseServerConfigs("10.0.0.1:8848, 10.0.0.2:8849")
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "10.0.0.1", configs[0].IpAddr)
	assert.Equal(t, uint64(8849), configs[1].Port)

	_, err = ParseServerConfigs("localhost")
	assert.Error(t, err)
	_, err = ParseServerConfigs("localhost:abc")
	assert.Error(t, err)
	_, err = ParseServerConfigs("")
	assert.Error(t, err)
}
