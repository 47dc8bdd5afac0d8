package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/rabbitmq"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, userID int) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": float64(userID)}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func startWSServer(t *testing.T, repo *mocks.MessageRepositoryMock, typing *mocks.TypingSignalsMock) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	publisher := rabbitmq.NewPublisher("", "test")
	handler := NewConversationWSHandler(NewHub(publisher), repo, typing, auth.NewTokenService(testSecret), publisher)
	r := gin.New()
	r.GET("/ws/messages", handler.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/messages?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	return conn
}

func TestWebsocketRejectsInvalidToken(t *testing.T) {
	srv := startWSServer(t, new(mocks.MessageRepositoryMock), new(mocks.TypingSignalsMock))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/messages?token=garbage"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketSendUsesConnectionIdentity(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	srv := startWSServer(t, repo, new(mocks.TypingSignalsMock))

	stored := models.Message{ID: 11, ConversationID: "1:2", SenderID: 1, ReceiverID: 2, Body: "hi", Kind: models.KindText}
	// The sender id comes from the validated token, never from the payload.
	repo.On("CreateMessage", mock.Anything, "1:2", 1, 2, "hi", models.KindText, "").Return(stored, nil).Once()

	conn := dialWS(t, srv, signTestToken(t, 1))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": models.EventJoinConversation, "peer_id": 2}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": models.EventSendMessage, "text": "hi"}))

	var event models.ChatEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventMessageReceived, event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, 11, event.Message.ID)
	assert.Equal(t, 1, event.Message.SenderID)
	repo.AssertExpectations(t)
}

func TestWebsocketSendBeforeJoinIsRejected(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	srv := startWSServer(t, repo, new(mocks.TypingSignalsMock))

	conn := dialWS(t, srv, signTestToken(t, 1))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": models.EventSendMessage, "text": "hi"}))

	var event models.ChatEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "error", event.Type)
	repo.AssertExpectations(t)
}

func TestWebsocketTypingReachesPeerOnly(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	typing := new(mocks.TypingSignalsMock)
	srv := startWSServer(t, repo, typing)

	ping := models.Message{ID: 1, ConversationID: "1:2", SenderID: 1, ReceiverID: 2, Body: "ping", Kind: models.KindText}
	pong := models.Message{ID: 2, ConversationID: "1:2", SenderID: 2, ReceiverID: 1, Body: "pong", Kind: models.KindText}
	repo.On("CreateMessage", mock.Anything, "1:2", 1, 2, "ping", models.KindText, "").Return(ping, nil).Once()
	repo.On("CreateMessage", mock.Anything, "1:2", 2, 1, "pong", models.KindText, "").Return(pong, nil).Once()
	typing.On("StartTyping", mock.Anything, 1, 2).Return(nil).Once()

	// Each side joins and exchanges one message; reading the broadcasts
	// proves both connections are in the room before typing fires.
	sender := dialWS(t, srv, signTestToken(t, 1))
	require.NoError(t, sender.WriteJSON(map[string]any{"type": models.EventJoinConversation, "peer_id": 2}))
	require.NoError(t, sender.WriteJSON(map[string]any{"type": models.EventSendMessage, "text": "ping"}))
	var event models.ChatEvent
	require.NoError(t, sender.ReadJSON(&event))

	receiver := dialWS(t, srv, signTestToken(t, 2))
	require.NoError(t, receiver.WriteJSON(map[string]any{"type": models.EventJoinConversation, "peer_id": 1}))
	require.NoError(t, receiver.WriteJSON(map[string]any{"type": models.EventSendMessage, "text": "pong"}))
	require.NoError(t, receiver.ReadJSON(&event))
	require.NoError(t, sender.ReadJSON(&event))

	require.NoError(t, sender.WriteJSON(map[string]any{"type": models.EventTyping}))
	require.NoError(t, receiver.ReadJSON(&event))
	assert.Equal(t, models.EventUserTyping, event.Type)
	assert.Equal(t, 1, event.UserID)

	repo.AssertExpectations(t)
	typing.AssertExpectations(t)
}
