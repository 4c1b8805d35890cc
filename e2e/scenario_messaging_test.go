package e2e

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testMessagingSuite struct {
	BaseSuite
}

func TestMessagingSuite(t *testing.T) {
	suite.Run(t, &testMessagingSuite{})
}

type authResponse struct {
	Token  string `json:"access_token"`
	UserID int64  `json:"user_id"`
}

func (s *testMessagingSuite) register(name string) authResponse {
	var resp authResponse
	s.Post("Registering "+name, "/auth/register", map[string]string{
		"username": name,
		"password": "E2e&Password#1",
	}, &resp)
	s.Require().NotEmpty(resp.Token)
	s.Require().NotZero(resp.UserID)
	return resp
}

func (s *testMessagingSuite) TestFullMessagingFlow() {
	// Random usernames so the suite can rerun against a dirty server
	suffix := uuid.NewString()[:8]
	var alice, bob authResponse

	s.Run("Step 1: Register both participants", func() {
		alice = s.register("alice_" + suffix)
		bob = s.register("bob_" + suffix)
	})

	aliceSocket := s.DialSocket("Connecting alice", alice.Token)
	defer aliceSocket.Close()
	bobSocket := s.DialSocket("Connecting bob", bob.Token)
	defer bobSocket.Close()

	s.Run("Step 2: Relay a message from alice to bob", func() {
		s.Require().NoError(aliceSocket.WriteJSON(map[string]any{
			"event": "send_message",
			"data": map[string]any{
				"receiver_id":       bob.UserID,
				"encrypted_content": "0xE2E_CIPHERTEXT",
			},
		}))

		delivered := s.ReadEvent(bobSocket, "new_message")
		var msg struct {
			SenderID   int64  `json:"sender_id"`
			Ciphertext string `json:"encrypted_content"`
		}
		s.Require().NoError(json.Unmarshal(delivered, &msg))
		s.Require().Equal(alice.UserID, msg.SenderID)
		s.Require().Equal("0xE2E_CIPHERTEXT", msg.Ciphertext)

		ack := s.ReadEvent(aliceSocket, "message_sent")
		var body struct {
			MessageID int64 `json:"message_id"`
		}
		s.Require().NoError(json.Unmarshal(ack, &body))
		s.Require().NotZero(body.MessageID)
	})

	s.Run("Step 3: Typing indicator reaches bob", func() {
		s.Require().NoError(aliceSocket.WriteJSON(map[string]any{
			"event": "typing",
			"data":  map[string]any{"receiver_id": bob.UserID, "is_typing": true},
		}))

		typing := s.ReadEvent(bobSocket, "typing")
		var body struct {
			SenderID int64 `json:"sender_id"`
			IsTyping bool  `json:"is_typing"`
		}
		s.Require().NoError(json.Unmarshal(typing, &body))
		s.Require().Equal(alice.UserID, body.SenderID)
		s.Require().True(body.IsTyping)
	})

	s.Run("Step 4: Self-message is refused", func() {
		s.Require().NoError(aliceSocket.WriteJSON(map[string]any{
			"event": "send_message",
			"data": map[string]any{
				"receiver_id":       alice.UserID,
				"encrypted_content": "0xOOPS",
			},
		}))

		refusal := s.ReadEvent(aliceSocket, "error")
		var body struct {
			Reason string `json:"reason"`
		}
		s.Require().NoError(json.Unmarshal(refusal, &body))
		s.Require().Equal("self_message", body.Reason)
	})

	s.Run("Step 5: History is readable over HTTP", func() {
		var history []map[string]any
		resp := s.Get("Fetching alice/bob history", fmt.Sprintf("/chats/%d/messages", bob.UserID), alice.Token, &history)
		s.Require().Equal(200, resp.StatusCode)
		s.Require().NotEmpty(history)
	})

	s.Run("Step 6: Bob shows as online while connected", func() {
		var peer struct {
			Username string `json:"username"`
			Online   bool   `json:"online"`
		}
		resp := s.Get("Fetching bob's status", fmt.Sprintf("/users/%d", bob.UserID), alice.Token, &peer)
		s.Require().Equal(200, resp.StatusCode)
		s.Require().True(peer.Online)
	})
}
