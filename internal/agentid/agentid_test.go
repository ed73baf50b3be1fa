package agentid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxford/event/internal/agentid"
)

func TestParse_RoundTrip(t *testing.T) {
	id, err := agentid.Parse("web.teacher-1.example.org")
	require.NoError(t, err)
	assert.Equal(t, "web", id.Label)
	assert.Equal(t, "teacher-1", id.Account.Label)
	assert.Equal(t, "example.org", id.Account.Audience)
	assert.Equal(t, "web.teacher-1.example.org", id.String())
}

func TestParse_MalformedIdentifier(t *testing.T) {
	_, err := agentid.Parse("just-a-label")
	assert.Error(t, err)
}

func TestParse_EmptyComponent(t *testing.T) {
	_, err := agentid.Parse("web..example.org")
	assert.Error(t, err)
}

func TestScan_NilClearsValue(t *testing.T) {
	id, err := agentid.Parse("web.teacher-1.example.org")
	require.NoError(t, err)

	require.NoError(t, id.Scan(nil))
	assert.True(t, id.IsZero())
}

func TestScan_FromBytes(t *testing.T) {
	var id agentid.AgentID
	require.NoError(t, id.Scan([]byte("web.teacher-1.example.org")))
	assert.Equal(t, "web.teacher-1.example.org", id.String())
}

func TestValue_ZeroIsNil(t *testing.T) {
	var id agentid.AgentID
	v, err := id.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
