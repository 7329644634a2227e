package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemaIsValidJSON(t *testing.T) {
	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(embeddedSchema), &schema))
	assert.Contains(t, schema, "$defs")
}

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	cfg := &Config{
		Topics: []TopicConfig{
			{Name: "t", ChannelEnv: "CH", Sources: []SourceConfig{{URL: "https://example.com/rss"}}},
		},
	}
	cfg.setDefaults()
	assert.NoError(t, VerifyAgainstEmbeddedSchema(cfg))
}
