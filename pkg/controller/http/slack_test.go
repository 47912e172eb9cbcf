package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	httpctrl "github.com/chapterkit/doorman/pkg/controller/http"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/service/dispatch"
)

// Export the private function for testing
var VerifySlackSignature = httpctrl.VerifySlackSignature

// computeSlackSignature computes the Slack signature for testing
func computeSlackSignature(signingSecret, timestamp, body string) string {
	baseString := fmt.Sprintf("v0:%s:%s", timestamp, body)
	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte(baseString))
	return "v0=" + hex.EncodeToString(h.Sum(nil))
}

// Test core signature verification function
func TestVerifySlackSignature(t *testing.T) {
	signingSecret := "test-signing-secret"
	body := []byte(`{"type":"url_verification","challenge":"test"}`)

	t.Run("valid signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature(signingSecret, timestamp, string(body))

		err := VerifySlackSignature(signingSecret, timestamp, signature, body)
		if err != nil {
			t.Errorf("expected no error, got: %v", err)
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)

		err := VerifySlackSignature(signingSecret, timestamp, "v0=invalid_signature", body)
		if err == nil {
			t.Error("expected error for invalid signature, got nil")
		}
	})

	t.Run("missing timestamp", func(t *testing.T) {
		signature := computeSlackSignature(signingSecret, "123456", string(body))

		err := VerifySlackSignature(signingSecret, "", signature, body)
		if err == nil {
			t.Error("expected error for missing timestamp, got nil")
		}
	})

	t.Run("missing signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)

		err := VerifySlackSignature(signingSecret, timestamp, "", body)
		if err == nil {
			t.Error("expected error for missing signature, got nil")
		}
	})

	t.Run("timestamp too old", func(t *testing.T) {
		oldTimestamp := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
		signature := computeSlackSignature(signingSecret, oldTimestamp, string(body))

		err := VerifySlackSignature(signingSecret, oldTimestamp, signature, body)
		if err == nil {
			t.Error("expected error for old timestamp, got nil")
		}
	})

	t.Run("invalid timestamp format", func(t *testing.T) {
		signature := computeSlackSignature(signingSecret, "not-a-number", string(body))

		err := VerifySlackSignature(signingSecret, "not-a-number", signature, body)
		if err == nil {
			t.Error("expected error for invalid timestamp format, got nil")
		}
	})

	t.Run("wrong secret produces different signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature("wrong-secret", timestamp, string(body))

		err := VerifySlackSignature(signingSecret, timestamp, signature, body)
		if err == nil {
			t.Error("expected error when using wrong secret, got nil")
		}
	})

	t.Run("different body produces different signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature(signingSecret, timestamp, "different body")

		err := VerifySlackSignature(signingSecret, timestamp, signature, body)
		if err == nil {
			t.Error("expected error when body doesn't match signature, got nil")
		}
	})
}

// Test middleware
func TestSlackSignatureMiddleware(t *testing.T) {
	signingSecret := "test-signing-secret"
	body := []byte(`{"type":"url_verification","challenge":"test"}`)

	t.Run("calls next handler when signature is valid", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature(signingSecret, timestamp, string(body))

		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
		req.Header.Set("X-Slack-Signature", signature)

		rec := httptest.NewRecorder()

		nextCalled := false
		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		})

		middleware := httpctrl.SlackSignatureMiddleware(signingSecret)
		middleware(nextHandler).ServeHTTP(rec, req)

		if !nextCalled {
			t.Error("expected next handler to be called, but it wasn't")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("does not call next handler when signature is invalid", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)

		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
		req.Header.Set("X-Slack-Signature", "v0=invalid")

		rec := httptest.NewRecorder()

		nextCalled := false
		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		})

		middleware := httpctrl.SlackSignatureMiddleware(signingSecret)
		middleware(nextHandler).ServeHTTP(rec, req)

		if nextCalled {
			t.Error("expected next handler NOT to be called, but it was")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
		}
	})

	t.Run("restores request body for next handler", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature(signingSecret, timestamp, string(body))

		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
		req.Header.Set("X-Slack-Signature", signature)

		rec := httptest.NewRecorder()

		var receivedBody []byte
		nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error
			receivedBody, err = io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("failed to read body in next handler: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		})

		middleware := httpctrl.SlackSignatureMiddleware(signingSecret)
		middleware(nextHandler).ServeHTTP(rec, req)

		if string(receivedBody) != string(body) {
			t.Errorf("expected body %s, got %s", string(body), string(receivedBody))
		}
	})
}

// signedRequest builds a request carrying a valid Slack signature
func signedRequest(secret, path, contentType, body string) *http.Request {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", computeSlackSignature(secret, timestamp, body))
	return req
}

func TestServer(t *testing.T) {
	const secret = "test-signing-secret"

	t.Run("health endpoint needs no signature", func(t *testing.T) {
		srv := httpctrl.New(dispatch.New(nil), secret)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != "OK" {
			t.Errorf("expected body OK, got %s", rec.Body.String())
		}
	})

	t.Run("echoes the url verification challenge", func(t *testing.T) {
		srv := httpctrl.New(dispatch.New(nil), secret)

		body := `{"type":"url_verification","challenge":"challenge-token"}`
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, signedRequest(secret, "/hooks/slack/event", "application/json", body))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != "challenge-token" {
			t.Errorf("expected challenge echo, got %s", rec.Body.String())
		}
	})

	t.Run("rejects unsigned event requests", func(t *testing.T) {
		srv := httpctrl.New(dispatch.New(nil), secret)

		body := `{"type":"url_verification","challenge":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
		}
	})

	t.Run("team join event starts onboarding", func(t *testing.T) {
		d := dispatch.New(nil)
		dispatched := make(chan *model.Interaction, 1)
		d.Register(model.KindCommand, model.IDCommandOnboard, func(ctx context.Context, ix *model.Interaction) error {
			dispatched <- ix
			return nil
		})
		srv := httpctrl.New(d, secret)

		body := `{
			"type": "event_callback",
			"team_id": "T1",
			"event": {"type": "team_join", "user": {"id": "UNEW"}}
		}`
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, signedRequest(secret, "/hooks/slack/event", "application/json", body))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		select {
		case ix := <-dispatched:
			if ix.UserID != "UNEW" {
				t.Errorf("expected user UNEW, got %s", ix.UserID)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	})

	t.Run("acceptance reaction is forwarded, others dropped", func(t *testing.T) {
		d := dispatch.New(nil)
		dispatched := make(chan *model.Interaction, 2)
		d.Register(model.KindReaction, model.IDReactionAccept, func(ctx context.Context, ix *model.Interaction) error {
			dispatched <- ix
			return nil
		})
		srv := httpctrl.New(d, secret, httpctrl.WithAcceptEmoji("white_check_mark"))

		reaction := func(emoji string) string {
			return fmt.Sprintf(`{
				"type": "event_callback",
				"team_id": "T1",
				"event": {
					"type": "reaction_added",
					"user": "U1",
					"reaction": %q,
					"item": {"type": "message", "channel": "C1", "ts": "1700000000.000100"}
				}
			}`, emoji)
		}

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, signedRequest(secret, "/hooks/slack/event", "application/json", reaction("thumbsup")))
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		rec = httptest.NewRecorder()
		srv.ServeHTTP(rec, signedRequest(secret, "/hooks/slack/event", "application/json", reaction("white_check_mark")))
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		select {
		case ix := <-dispatched:
			if ix.ChannelID != "C1" || ix.MessageID != "1700000000.000100" {
				t.Errorf("unexpected interaction: %+v", ix)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}

		select {
		case ix := <-dispatched:
			t.Errorf("unexpected second dispatch: %+v", ix)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("slash command is dispatched without the slash", func(t *testing.T) {
		d := dispatch.New(nil)
		dispatched := make(chan *model.Interaction, 1)
		d.Register(model.KindCommand, model.IDCommandRoles, func(ctx context.Context, ix *model.Interaction) error {
			dispatched <- ix
			return nil
		})
		srv := httpctrl.New(d, secret)

		form := "command=%2Froles&user_id=U1&channel_id=C1&trigger_id=tr1"
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, signedRequest(secret, "/hooks/slack/command", "application/x-www-form-urlencoded", form))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		select {
		case ix := <-dispatched:
			if ix.ID != model.IDCommandRoles || ix.UserID != "U1" || ix.TriggerID != "tr1" {
				t.Errorf("unexpected interaction: %+v", ix)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	})
}
