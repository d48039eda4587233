package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateUnmarshal(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-01-01"}`), &v))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), v.D.Time)

	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-02-05T10:30:00Z"}`), &v))
	assert.Equal(t, time.Date(2024, 2, 5, 10, 30, 0, 0, time.UTC), v.D.Time)

	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &v))
	assert.True(t, v.D.IsZero())
	assert.Nil(t, v.D.Ptr())

	assert.Error(t, json.Unmarshal([]byte(`{"d":"01/02/2024"}`), &v))
}
