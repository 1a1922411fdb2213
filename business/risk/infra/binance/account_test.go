package binance

import (
	"io"
	"testing"
	"time"

	"github.com/dlemos/perparb/internal/logger"
)

func TestNewAccountGatewayRequiresCredentials(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	_, err := NewAccountGateway(Config{APIKey: "key"}, log)
	if err == nil {
		t.Fatal("expected error with missing secret")
	}

	_, err = NewAccountGateway(Config{APISecret: "secret"}, log)
	if err == nil {
		t.Fatal("expected error with missing key")
	}
}

func TestSignedQuery(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	gw, err := NewAccountGateway(Config{APIKey: "test-key", APISecret: "test-secret"}, log)
	if err != nil {
		t.Fatalf("NewAccountGateway returned error: %v", err)
	}
	gw.now = func() time.Time { return time.UnixMilli(1700000000000) }

	query := gw.signedQuery()

	want := "recvWindow=5000&timestamp=1700000000000" +
		"&signature=e80444d3300edcb80b05d266439eb51c0f9551b00a09836c26b05dea9af0eba3"
	if query != want {
		t.Errorf("signed query = %q, want %q", query, want)
	}
}
