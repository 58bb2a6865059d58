package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-progress-api/internal/dto"
	"github.com/noah-isme/thesis-progress-api/internal/models"
)

func TestNotificationHandlerList(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, &student7, http.MethodGet, "/api/v1/notifications?unread=true&limit=2&cursor=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, dto.NotificationQuery{UnreadOnly: true, Cursor: "abc", Limit: 2}, ts.notifications.lastQuery)

	envelope := decodeEnvelope(t, rec)
	var items []models.Notification
	require.NoError(t, json.Unmarshal(envelope.Data, &items))
	require.Len(t, items, 2)
	require.Equal(t, "n-2", items[0].ID)
	require.Equal(t, "next", envelope.Pagination["next_cursor"])
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, &student7, http.MethodPost, "/api/v1/notifications/n-1/read", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, ts.notifications.read["n-1"])

	rec = ts.do(t, &student7, http.MethodPost, "/api/v1/notifications/missing/read", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationHandlerCounts(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, &student7, http.MethodGet, "/api/v1/notifications/unread-count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var unread dto.UnreadCountResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &unread))
	require.Equal(t, 5, unread.Unread)

	rec = ts.do(t, &student7, http.MethodPost, "/api/v1/notifications/read-all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var updated dto.MarkAllReadResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &updated))
	require.Equal(t, int64(3), updated.Updated)
}
