package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"
)

func githubSignature(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func slackSignature(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyGitHubSignature(t *testing.T) {
	secret := []byte("shhh")
	body := []byte(`{"action":"opened"}`)
	valid := githubSignature(secret, body)

	for _, tc := range []struct {
		name   string
		secret []byte
		body   []byte
		header string
		want   bool
	}{
		{"Valid", secret, body, valid, true},
		{"WrongSecret", []byte("other"), body, valid, false},
		{"TamperedBody", secret, []byte(`{"action":"closed"}`), valid, false},
		{"MissingHeader", secret, body, "", false},
		{"MissingPrefix", secret, body, valid[len("sha256="):], false},
		{"BadHex", secret, body, "sha256=zzzz", false},
		{"NilSecret", nil, body, valid, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := VerifyGitHubSignature(tc.secret, tc.body, tc.header); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVerifySlackSignature(t *testing.T) {
	secret := []byte("shhh")
	body := []byte(`{"type":"event_callback"}`)
	now := time.Now()
	ts := strconv.FormatInt(now.Unix(), 10)
	staleTS := strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10)
	futureTS := strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10)

	for _, tc := range []struct {
		name      string
		timestamp string
		header    string
		want      bool
	}{
		{"Valid", ts, slackSignature(secret, ts, body), true},
		{"WrongSig", ts, slackSignature([]byte("other"), ts, body), false},
		{"StaleTimestamp", staleTS, slackSignature(secret, staleTS, body), false},
		{"FutureTimestamp", futureTS, slackSignature(secret, futureTS, body), false},
		{"NonNumericTimestamp", "yesterday", slackSignature(secret, "yesterday", body), false},
		{"MissingTimestamp", "", slackSignature(secret, ts, body), false},
		{"MissingHeader", ts, "", false},
		{"MissingPrefix", ts, slackSignature(secret, ts, body)[len("v0="):], false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := VerifySlackSignature(secret, body, tc.timestamp, tc.header, now)
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	// A signature within the tolerance window on the old side.
	edgeTS := strconv.FormatInt(now.Add(-4*time.Minute).Unix(), 10)
	if !VerifySlackSignature(secret, body, edgeTS, slackSignature(secret, edgeTS, body), now) {
		t.Error("timestamp inside tolerance should verify")
	}
}
