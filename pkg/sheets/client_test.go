package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rentals-backend/pkg/config"
)

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'Dresses'", quoteSheet("Dresses"))
	assert.Equal(t, "'Kid''s things'", quoteSheet("Kid's things"))
}

func TestStringRows(t *testing.T) {
	rows := stringRows([][]interface{}{
		{"#12 біла сукня S", nil, 3.5},
		{},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"#12 біла сукня S", "", "3.5"}, rows[0])
	assert.Empty(t, rows[1])
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/key.json"}), 2)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 2)
}
