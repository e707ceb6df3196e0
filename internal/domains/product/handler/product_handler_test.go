package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRequestBody(t *testing.T) {
	var req publishRequest
	require.NoError(t, json.Unmarshal([]byte(`{"product_ids":["a","b"]}`), &req))
	assert.Equal(t, []string{"a", "b"}, req.productIDs())
	assert.NoError(t, req.Validate())

	// Older clients send "ids".
	req = publishRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"ids":["c"]}`), &req))
	assert.Equal(t, []string{"c"}, req.productIDs())
	assert.NoError(t, req.Validate())

	// product_ids wins when both are present.
	req = publishRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"product_ids":["a"],"ids":["c"]}`), &req))
	assert.Equal(t, []string{"a"}, req.productIDs())

	req = publishRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &req))
	assert.Error(t, req.Validate())
}
