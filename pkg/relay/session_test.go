package relay

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSession_Validate(t *testing.T) {
	session := &Session{Id: uuid.New()}
	assert.NoError(t, session.Validate())

	session.LatestTx = []byte(`{"instructions": []}`)
	assert.NoError(t, session.Validate())

	session.LatestTx = []byte(`{"instructions": [`)
	assert.Error(t, session.Validate())

	session = &Session{}
	assert.Error(t, session.Validate())
}

func TestSession_Clone(t *testing.T) {
	now := time.Now()
	session := &Session{
		Id:              uuid.New(),
		LatestTx:        []byte(`{}`),
		WalletConnected: true,
		CreatedAt:       now,
		LastUpdatedAt:   now.Add(time.Second),
	}

	cloned := session.Clone()
	assert.Equal(t, *session, cloned)

	cloned.LatestTx[0] = '['
	assert.Equal(t, `{}`, string(session.LatestTx))

	var copied Session
	session.CopyTo(&copied)
	assert.Equal(t, *session, copied)
	assert.True(t, copied.HasLatestTx())
}

func TestSession_Document(t *testing.T) {
	session := &Session{Id: uuid.New()}

	_, err := session.Document()
	assert.Equal(t, ErrNoLatestTransaction, err)

	session.LatestTx = []byte(`{"instructions":[{"data":[1,2]}]}`)
	document, err := session.Document()
	assert.NoError(t, err)
	assert.Equal(t, "{\n  \"instructions\": [\n    {\n      \"data\": [\n        1,\n        2\n      ]\n    }\n  ]\n}", string(document))
}
