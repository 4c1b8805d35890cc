package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"veilchat/domain"
	"veilchat/errors"
	"veilchat/infrastructure/ws"
	"veilchat/mocks"
	"veilchat/mocks/servicemocks"
	"veilchat/presence"
	"veilchat/relay"
	"veilchat/services"
	"veilchat/storage"
)

// stubVerifier accepts exactly one token.
type stubVerifier struct {
	token    string
	identity domain.Identity
}

func (s stubVerifier) Verify(credential string) (domain.Identity, error) {
	if credential != s.token {
		return domain.Identity{}, errors.ErrInvalidCredential
	}
	return s.identity, nil
}

type routerFixture struct {
	server      *httptest.Server
	authService *servicemocks.MockIAuthService
	chatService *servicemocks.MockIChatService
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	authService := servicemocks.NewMockIAuthService(ctrl)
	chatService := servicemocks.NewMockIChatService(ctrl)

	media, err := storage.NewMediaStore(t.TempDir(), slog.Default())
	require.NoError(t, err)

	verifier := stubVerifier{token: "good-token", identity: domain.Identity{ID: 1, Username: "alice"}}
	engine := relay.NewEngine(slog.Default(), mocks.NewMockICredentialValidator(ctrl),
		presence.NewRegistry(), mocks.NewMockIUserStore(ctrl), mocks.NewMockIMessageStore(ctrl),
		time.Second)
	gateway := ws.NewGateway(slog.Default(), engine, 16)

	router := NewRouter(slog.Default(), gateway, verifier, authService, chatService, media)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return routerFixture{server: server, authService: authService, chatService: chatService}
}

func (f routerFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandler_Health(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodGet, "/health", "", nil)

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("ok", decode[map[string]string](t, resp)["status"])
}

func TestHandler_Register(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.authService.EXPECT().Register("alice", "", "Complex&Pass123").
		Return(services.Token("signed-jwt"), domain.Identity{ID: 1, Username: "alice"}, nil)

	resp := f.do(t, http.MethodPost, "/auth/register", "",
		map[string]string{"username": "alice", "password": "Complex&Pass123"})

	req.Equal(http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	req.Equal("signed-jwt", body["access_token"])
	req.Equal(float64(1), body["user_id"])
}

func TestHandler_Register_Conflict(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.authService.EXPECT().Register("alice", "", gomock.Any()).
		Return(services.Token(""), domain.Identity{}, errors.ErrUserAlreadyExists)

	resp := f.do(t, http.MethodPost, "/auth/register", "",
		map[string]string{"username": "alice", "password": "Complex&Pass123"})

	req.Equal(http.StatusConflict, resp.StatusCode)
}

func TestHandler_Login_Invalid(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.authService.EXPECT().Login("alice", "wrong").
		Return(services.Token(""), domain.Identity{}, errors.ErrInvalidCredentials)

	resp := f.do(t, http.MethodPost, "/auth/login", "",
		map[string]string{"username": "alice", "password": "wrong"})

	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_History_Requires_Auth(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodGet, "/chats/2/messages", "", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/chats/2/messages", "bad-token", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_History(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.chatService.EXPECT().History(domain.UserID(1), domain.UserID(2)).
		Return([]domain.Message{
			{ID: 10, SenderID: 1, ReceiverID: 2, Ciphertext: "0xAA", Type: domain.MessageText},
		}, nil)

	resp := f.do(t, http.MethodGet, "/chats/2/messages", "good-token", nil)

	req.Equal(http.StatusOK, resp.StatusCode)
	list := decode[[]map[string]any](t, resp)
	req.Len(list, 1)
	req.Equal("0xAA", list[0]["encrypted_content"])
	req.Equal(float64(10), list[0]["id"])
}

func TestHandler_History_Bad_User_Param(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodGet, "/chats/zero/messages", "good-token", nil)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_MarkRead(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.chatService.EXPECT().MarkRead(gomock.Any(), domain.UserID(1), domain.UserID(2)).
		Return(3, nil)

	resp := f.do(t, http.MethodPost, "/chats/2/mark-read", "good-token", nil)

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(float64(3), decode[map[string]any](t, resp)["marked_count"])
}

func TestHandler_ClearChat(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.chatService.EXPECT().Clear(domain.UserID(1), domain.UserID(2)).Return(5, nil)

	resp := f.do(t, http.MethodDelete, "/chats/2/messages", "good-token", nil)

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(float64(5), decode[map[string]any](t, resp)["deleted_count"])
}

func TestHandler_Peer(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	lastSeen := time.Now().UTC().Truncate(time.Second)
	f.chatService.EXPECT().Peer(domain.UserID(2)).
		Return(services.PeerStatus{UserID: 2, Username: "bob", Online: true, LastSeen: lastSeen}, nil)

	resp := f.do(t, http.MethodGet, "/users/2", "good-token", nil)

	req.Equal(http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	req.Equal("bob", body["username"])
	req.Equal(true, body["online"])
}

func TestHandler_Peer_Unknown(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.chatService.EXPECT().Peer(domain.UserID(9)).
		Return(services.PeerStatus{}, errors.ErrUserNotFound)

	resp := f.do(t, http.MethodGet, "/users/9", "good-token", nil)

	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestHandler_Upload_Png(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	// Minimal PNG header, enough for content sniffing
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	resp := f.upload(t, "photo.png", png)

	req.Equal(http.StatusCreated, resp.StatusCode)
	url := decode[map[string]string](t, resp)["url"]
	req.Contains(url, "/static/uploads/")
	req.Contains(url, ".png")
}

func TestHandler_Upload_Rejects_Unknown_Content(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	resp := f.upload(t, "script.html", []byte("<html><script>alert(1)</script></html>"))

	req.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
}

func (f routerFixture) upload(t *testing.T, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer good-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
