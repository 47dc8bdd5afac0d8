package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func setupPresenceRouter(handler *PresenceHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/messages/heartbeat", handler.Heartbeat)
	r.GET("/messages/online/users-list", handler.OnlineUsersList)
	r.POST("/messages/typing/start", handler.StartTyping)
	r.POST("/messages/typing/stop", handler.StopTyping)
	r.GET("/messages/typing/status/:user_id", handler.TypingStatus)
	return r
}

func TestHeartbeatSuccess(t *testing.T) {
	tracker := new(mocks.TrackerMock)
	handler := NewPresenceHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), tracker, new(mocks.TypingSignalsMock), time.Minute)
	router := setupPresenceRouter(handler)

	tracker.On("Heartbeat", mock.Anything, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/heartbeat", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	tracker.AssertExpectations(t)
}

func TestHeartbeatSwallowsTrackerError(t *testing.T) {
	tracker := new(mocks.TrackerMock)
	handler := NewPresenceHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), tracker, new(mocks.TypingSignalsMock), time.Minute)
	router := setupPresenceRouter(handler)

	tracker.On("Heartbeat", mock.Anything, 1).Return(errors.New("redis down")).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/heartbeat", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	tracker.AssertExpectations(t)
}

func TestOnlineUsersListOrdering(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	tracker := new(mocks.TrackerMock)
	handler := NewPresenceHandler(userRepo, messageRepo, tracker, new(mocks.TypingSignalsMock), time.Minute)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }
	router := setupPresenceRouter(handler)

	userRepo.On("ListOthers", mock.Anything, 1).Return([]models.User{
		{ID: 2, DisplayName: "beta"},
		{ID: 3, DisplayName: "alpha"},
		{ID: 4, DisplayName: "zulu"},
	}, nil).Once()
	// 2 and 4 are inside the window, 3 went quiet ten minutes ago.
	tracker.On("LastActivities", mock.Anything, []int{2, 3, 4}).Return(map[int]time.Time{
		2: now.Add(-10 * time.Second),
		3: now.Add(-10 * time.Minute),
		4: now.Add(-30 * time.Second),
	}, nil).Once()
	messageRepo.On("UnreadSummary", mock.Anything, 1).Return(map[int]int{3: 5, 4: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/online/users-list", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Users []models.OnlineUser `json:"users"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Users, 3)

	// Online users lead, ordered by unread count; offline users trail even
	// with more unread.
	assert.Equal(t, 4, resp.Users[0].ID)
	assert.True(t, resp.Users[0].IsOnline)
	assert.Equal(t, 2, resp.Users[0].UnreadCount)
	assert.Equal(t, 2, resp.Users[1].ID)
	assert.True(t, resp.Users[1].IsOnline)
	assert.Equal(t, 3, resp.Users[2].ID)
	assert.False(t, resp.Users[2].IsOnline)
	assert.Equal(t, 5, resp.Users[2].UnreadCount)

	userRepo.AssertExpectations(t)
	tracker.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestOnlineUsersListRendersOfflineWhenTrackerFails(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	tracker := new(mocks.TrackerMock)
	handler := NewPresenceHandler(userRepo, messageRepo, tracker, new(mocks.TypingSignalsMock), time.Minute)
	router := setupPresenceRouter(handler)

	userRepo.On("ListOthers", mock.Anything, 1).Return([]models.User{{ID: 2, DisplayName: "beta"}}, nil).Once()
	tracker.On("LastActivities", mock.Anything, []int{2}).Return(nil, errors.New("redis down")).Once()
	messageRepo.On("UnreadSummary", mock.Anything, 1).Return(map[int]int{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/online/users-list", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Users []models.OnlineUser `json:"users"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Users, 1)
	assert.False(t, resp.Users[0].IsOnline)
	assert.Nil(t, resp.Users[0].LastActivity)
}

func TestStartTypingSuccess(t *testing.T) {
	typing := new(mocks.TypingSignalsMock)
	handler := NewPresenceHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.TrackerMock), typing, time.Minute)
	router := setupPresenceRouter(handler)

	typing.On("StartTyping", mock.Anything, 1, 2).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/typing/start", bytes.NewBufferString(`{"receiver_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	typing.AssertExpectations(t)
}

func TestStartTypingRejectsSelf(t *testing.T) {
	typing := new(mocks.TypingSignalsMock)
	handler := NewPresenceHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.TrackerMock), typing, time.Minute)
	router := setupPresenceRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/messages/typing/start", bytes.NewBufferString(`{"receiver_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	typing.AssertExpectations(t)
}

func TestStopTypingSwallowsSignalError(t *testing.T) {
	typing := new(mocks.TypingSignalsMock)
	handler := NewPresenceHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.TrackerMock), typing, time.Minute)
	router := setupPresenceRouter(handler)

	typing.On("StopTyping", mock.Anything, 1, 2).Return(errors.New("redis down")).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/typing/stop", bytes.NewBufferString(`{"receiver_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	typing.AssertExpectations(t)
}

func TestTypingStatus(t *testing.T) {
	typing := new(mocks.TypingSignalsMock)
	handler := NewPresenceHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.TrackerMock), typing, time.Minute)
	router := setupPresenceRouter(handler)

	typing.On("IsTyping", mock.Anything, 2, 1).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/typing/status/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.TypingStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Typing)
	assert.Equal(t, 2, resp.UserID)
	typing.AssertExpectations(t)
}

func TestTypingStatusFalseOnLookupError(t *testing.T) {
	typing := new(mocks.TypingSignalsMock)
	handler := NewPresenceHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.TrackerMock), typing, time.Minute)
	router := setupPresenceRouter(handler)

	typing.On("IsTyping", mock.Anything, 2, 1).Return(false, errors.New("redis down")).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/typing/status/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.TypingStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Typing)
	typing.AssertExpectations(t)
}
