package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"tradegate/auth"
)

type BaseGatewaySuite struct {
	suite.Suite
	Config Config
	token  string
}

// SetupSuite loads the environment configuration before running tests.
// The whole suite is skipped when no gateway address is configured, so
// the package stays inert in a plain unit-test run.
func (s *BaseGatewaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.GatewayAddr == "" {
		s.T().Skip("GATEWAY_ADDR not set, skipping gateway e2e suite")
	}

	tokens := auth.NewAdminTokens(s.Config.AdminTokenSecret)
	s.token, err = tokens.Generate("e2e", time.Hour)
	s.Require().NoError(err)
}

func (s *BaseGatewaySuite) step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Dial opens a websocket session with the given authority credential.
func (s *BaseGatewaySuite) Dial(name, credential string) *websocket.Conn {
	s.step(name)

	url := fmt.Sprintf("ws://%s/ws?token=%s", s.Config.GatewayAddr, credential)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to connect to gateway at "+url)
	return conn
}

// ReadFrame decodes the next frame into a generic map, with optional
// JSON dumping for debugging.
func (s *BaseGatewaySuite) ReadFrame(conn *websocket.Conn, within time.Duration) map[string]any {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(within)))
	_, payload, err := conn.ReadMessage()
	s.Require().NoError(err)

	if s.Config.DebugJSON {
		s.T().Logf("FRAME: %s", payload)
	}

	var frame map[string]any
	s.Require().NoError(json.Unmarshal(payload, &frame))
	return frame
}

// decode drains a response body into the target shape.
func (s *BaseGatewaySuite) decode(response *http.Response, target any) {
	s.Require().NoError(json.NewDecoder(response.Body).Decode(target))
}

// Admin performs one authenticated call against the admin API and
// returns the response. The body, when non-nil, is sent as JSON.
func (s *BaseGatewaySuite) Admin(t *testing.T, method, path string, body any) *http.Response {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	url := fmt.Sprintf("http://%s%s", s.Config.AdminAddr, path)
	request, err := http.NewRequest(method, url, bytes.NewReader(payload))
	s.Require().NoError(err)
	request.Header.Set("Authorization", "Bearer "+s.token)
	request.Header.Set("Content-Type", "application/json")

	start := time.Now()
	response, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	t.Logf("HTTP %s %s [%d] in %v", method, path, response.StatusCode, time.Since(start))
	return response
}
