package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// BaseSuite drives a running server over its public HTTP and
// websocket surfaces. Suites embedding it are end-to-end: they skip
// when no server address is configured.
type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set, skipping end-to-end suite")
	}
}

// Post sends a JSON body and decodes the JSON response, with
// colorized logging and optional full-body dumps.
func (s *BaseSuite) Post(name, path string, body, out any) *http.Response {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	start := time.Now()
	resp, err := http.Post("http://"+s.Config.ServerAddr+path, "application/json", bytes.NewReader(payload))
	s.Require().NoError(err, "Failed to reach server at "+s.Config.ServerAddr)
	defer resp.Body.Close()

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "POST %s [%d] in %v", path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(payload))
	}
	s.T().Log(logBuilder.String())

	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// Get performs an authenticated GET and decodes the JSON response.
func (s *BaseSuite) Get(name, path, token string, out any) *http.Response {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	req, err := http.NewRequest(http.MethodGet, "http://"+s.Config.ServerAddr+path, nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err, "Failed to reach server at "+s.Config.ServerAddr)
	defer resp.Body.Close()

	s.T().Logf("GET %s [%d] in %v", path, resp.StatusCode, time.Since(start))

	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// DialSocket opens an authenticated websocket session: it dials the
// relay endpoint and performs the connect handshake with the token.
func (s *BaseSuite) DialSocket(name, token string) *websocket.Conn {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgCyan).Render(header)
	}
	s.T().Log(header)

	socket, _, err := websocket.DefaultDialer.Dial("ws://"+s.Config.ServerAddr+"/ws", nil)
	s.Require().NoError(err, "Failed to reach websocket endpoint at "+s.Config.ServerAddr)

	s.Require().NoError(socket.WriteJSON(map[string]any{
		"event": "connect",
		"data":  map[string]string{"token": token},
	}))
	return socket
}

// ReadEvent blocks for the next frame of a given event name, failing
// the suite when the peer sends something else first.
func (s *BaseSuite) ReadEvent(socket *websocket.Conn, eventName string) json.RawMessage {
	s.Require().NoError(socket.SetReadDeadline(time.Now().Add(5 * time.Second)))

	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	s.Require().NoError(socket.ReadJSON(&frame))
	s.Require().Equal(eventName, frame.Event)

	if s.Config.DebugJSON {
		s.T().Logf("EVENT %s: %s", frame.Event, string(frame.Data))
	}
	return frame.Data
}
