package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// slackTimestampTolerance bounds how old a Slack request may be before
// it is rejected as a possible replay.
const slackTimestampTolerance = 5 * time.Minute

// VerifyGitHubSignature checks the X-Hub-Signature-256 header
// ("sha256=<hex>") against an HMAC-SHA256 of the raw body. The compare
// is constant-time.
func VerifyGitHubSignature(secret, body []byte, header string) bool {
	if secret == nil || header == "" {
		return false
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// VerifySlackSignature checks the X-Slack-Signature header
// ("v0=<hex>") against an HMAC-SHA256 of "v0:<timestamp>:<body>".
// Requests with a timestamp outside the tolerance window are rejected
// regardless of signature.
func VerifySlackSignature(secret, body []byte, timestamp, header string, now time.Time) bool {
	if secret == nil || header == "" || timestamp == "" {
		return false
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > slackTimestampTolerance || age < -slackTimestampTolerance {
		return false
	}

	sig, ok := strings.CutPrefix(header, "v0=")
	if !ok {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
