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

// SignatureHeader carries "t=<unix>,v1=<hex hmac-sha256>" for signed webhooks.
const SignatureHeader = "X-Signature"

// Sign returns the signature header value for body at now.
// The signed content is "<unix seconds>.<body>".
func Sign(body []byte, secret []byte, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeHMAC(ts, body, secret))
}

// Verify checks header against body and secret. Signatures older or newer
// than tolerance relative to now are rejected; a zero tolerance disables
// the freshness check.
func Verify(body []byte, header string, secret []byte, now time.Time, tolerance time.Duration) bool {
	ts, sig := parseSignatureHeader(header)
	if ts == "" || sig == "" || len(secret) == 0 {
		return false
	}
	if tolerance > 0 {
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return false
		}
		skew := now.Sub(time.Unix(unix, 0))
		if skew > tolerance || skew < -tolerance {
			return false
		}
	}
	expected := computeHMAC(ts, body, secret)
	return hmac.Equal([]byte(sig), []byte(expected))
}

func parseSignatureHeader(header string) (timestamp, v1 string) {
	for _, segment := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			timestamp = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return timestamp, v1
}

func computeHMAC(timestamp string, body, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
