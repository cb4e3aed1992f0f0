package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkotler/micstage/internal/app"
	"github.com/vkotler/micstage/internal/auth"
	"github.com/vkotler/micstage/internal/core"
	"github.com/vkotler/micstage/internal/domain"
)

func newTestAPI(t *testing.T) (*gin.Engine, *core.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := core.NewStore(10, 200)
	h := &handlers{
		Rooms:    store,
		Registry: app.NewRegistry(),
		Gateway:  auth.New("", 0, time.Hour),
	}

	r := gin.New()
	api := r.Group("/api")
	api.GET("/health", h.health)
	api.GET("/rooms", h.listRooms)
	api.GET("/room/:id", h.roomDetail)
	api.POST("/auth/verify", h.verifyIdentity)
	api.POST("/media/credential", h.mediaCredential)
	return r, store
}

func seedRoom(t *testing.T, store *core.Store, room domain.RoomID) {
	t.Helper()
	m, err := domain.NewMember("conn-a", "alice", "")
	require.NoError(t, err)
	store.Join(room, m)
	_, _, _, err = store.AssignMic(room, "conn-a", 1)
	require.NoError(t, err)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestHealth(t *testing.T) {
	r, store := newTestAPI(t)
	seedRoom(t, store, "r1")

	w, body := doJSON(t, r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["rooms_count"])
	assert.Equal(t, false, body["media_configured"])
}

func TestListRooms(t *testing.T) {
	r, store := newTestAPI(t)
	seedRoom(t, store, "r1")

	w, body := doJSON(t, r, http.MethodGet, "/api/rooms", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	rooms := body["rooms"].([]any)
	require.Len(t, rooms, 1)
	room := rooms[0].(map[string]any)
	assert.Equal(t, "r1", room["id"])
	assert.EqualValues(t, 1, room["member_count"])
	assert.EqualValues(t, 1, room["active_mics"])
}

func TestRoomDetail(t *testing.T) {
	r, store := newTestAPI(t)
	seedRoom(t, store, "r1")

	w, body := doJSON(t, r, http.MethodGet, "/api/room/r1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].(map[string]any)["name"])
	assert.Equal(t, "alice", body["mic_slots"].(map[string]any)["1"])

	w, body = doJSON(t, r, http.MethodGet, "/api/room/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Room not found", body["error"])
}

func TestVerifyIdentityEndpoint(t *testing.T) {
	r, _ := newTestAPI(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/auth/verify", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unconfigured gateway declines every token.
	w, _ = doJSON(t, r, http.MethodPost, "/api/auth/verify", `{"token":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMediaCredentialEndpoint(t *testing.T) {
	r, _ := newTestAPI(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/media/credential", `{"userId":"user-42","roomId":"r1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", body["userId"])
	assert.Equal(t, "r1", body["roomId"])
	assert.Equal(t, "test", body["mode"])
	assert.Equal(t, true, body["success"])

	// A missing user id gets a generated guest identity.
	w, body = doJSON(t, r, http.MethodPost, "/api/media/credential", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["userId"], "guest-")
}
