package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskFile(t *testing.T) {
	data := []byte("keyword,count\nleather bag,25\n\nsilk scarf, 10\n")

	params, err := parseTaskFile(data)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "leather bag", params[0].Keyword)
	assert.Equal(t, 25, params[0].Count)
	assert.Equal(t, "silk scarf", params[1].Keyword)
	assert.Equal(t, 10, params[1].Count)
}

func TestParseTaskFileInvalidCount(t *testing.T) {
	_, err := parseTaskFile([]byte("leather bag,many\n"))
	assert.Error(t, err)
}

func TestParseTaskFileEmpty(t *testing.T) {
	_, err := parseTaskFile([]byte("keyword,count\n"))
	assert.Error(t, err)
}
