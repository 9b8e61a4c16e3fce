// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"
	"go.uber.org/zap/zaptest"
)

// mockTokenSource implements TokenSource for testing.
type mockTokenSource struct {
	token string
	err   error
}

func (m *mockTokenSource) Token(ctx context.Context) (string, error) { return m.token, m.err }
func (m *mockTokenSource) ProjectID() string                         { return "school-portal" }

func TestSendPerTokenOutcomes(t *testing.T) {
	ctx := context.Background()

	var requests []map[string]interface{}
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-bearer", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requests = append(requests, body)

		message := body["message"].(map[string]interface{})
		if message["token"] == "token-bad" {
			http.Error(w, `{"error":{"status":"UNREGISTERED"}}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name": "projects/school-portal/messages/1",
		})
	}))
	defer endpoint.Close()

	sender := NewSender(zaptest.NewLogger(t), &mockTokenSource{token: "test-bearer"}, SenderConfig{
		SendURL: endpoint.URL + "/%s/messages:send",
	})

	outcomes, err := sender.Send(ctx, []string{"token-a", "token-bad", "token-b"}, Message{
		Type:  TypeAnnouncement,
		Title: "Holiday",
		Body:  "School closed tomorrow",
		Data:  map[string]string{"date": "2024-08-15"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.True(t, outcomes[0].Success)
	assert.Equal(t, "projects/school-portal/messages/1", outcomes[0].MessageID)
	assert.False(t, outcomes[1].Success)
	assert.Contains(t, outcomes[1].Error, "UNREGISTERED")
	assert.True(t, outcomes[2].Success)

	// Sends are data-only with high priority; the envelope rides in data.
	require.Len(t, requests, 3)
	message := requests[0]["message"].(map[string]interface{})
	_, hasNotification := message["notification"]
	assert.False(t, hasNotification)
	data := message["data"].(map[string]interface{})
	assert.Equal(t, "announcement", data["type"])
	assert.Equal(t, "Holiday", data["title"])
	assert.Equal(t, "School closed tomorrow", data["message"])
	assert.Equal(t, "2024-08-15", data["date"])
	android := message["android"].(map[string]interface{})
	assert.Equal(t, "HIGH", android["priority"])
}

func TestSendLegacyFallback(t *testing.T) {
	ctx := context.Background()

	legacy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=legacy-server-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		ids := body["registration_ids"].([]interface{})
		require.Len(t, ids, 2)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": 1,
			"failure": 1,
			"results": []map[string]string{
				{"message_id": "m1"},
				{"error": "NotRegistered"},
			},
		})
	}))
	defer legacy.Close()

	sender := NewSender(zaptest.NewLogger(t), &mockTokenSource{err: ErrBroker.New("bad key")}, SenderConfig{
		ServerKey: "legacy-server-key",
		LegacyURL: legacy.URL,
	})

	outcomes, err := sender.Send(ctx, []string{"token-a", "token-b"}, Message{Title: "t", Body: "b"})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, "m1", outcomes[0].MessageID)
	assert.False(t, outcomes[1].Success)
	assert.Equal(t, "NotRegistered", outcomes[1].Error)
}

func TestSendBrokerFailureWithoutLegacyKey(t *testing.T) {
	ctx := context.Background()

	sender := NewSender(zaptest.NewLogger(t), &mockTokenSource{err: errs.New("no credentials")}, SenderConfig{})

	_, err := sender.Send(ctx, []string{"token-a"}, Message{Title: "t", Body: "b"})
	require.Error(t, err)
	assert.True(t, ErrSender.Has(err))
}

func TestSendNoTokens(t *testing.T) {
	ctx := context.Background()

	sender := NewSender(zaptest.NewLogger(t), &mockTokenSource{token: "unused"}, SenderConfig{})
	outcomes, err := sender.Send(ctx, nil, Message{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
