package vardr

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	wrapped := fmt.Errorf("%w: dial 10.0.0.1:22: refused", ErrConnection)
	if !Retryable(wrapped) {
		t.Errorf("wrapped connection error should be retryable")
	}
	if !Retryable(ErrCommandTimeout) {
		t.Errorf("timeout should be retryable")
	}
	if Retryable(ErrAuthentication) {
		t.Errorf("authentication failure must never be retried")
	}
	if Retryable(fmt.Errorf("%w: exited 1", ErrCommandFailed)) {
		t.Errorf("command rejection is deterministic and must never be retried")
	}
	if Retryable(&ParseError{Vendor: "cisco", Reason: "truncated"}) {
		t.Errorf("parse error must never be retried")
	}
	if Retryable(errors.New("something else")) {
		t.Errorf("unknown errors should not be retried")
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ParseError{Vendor: "cisco"}, "parse"},
		{fmt.Errorf("%w: r1", ErrAuthentication), "authentication"},
		{fmt.Errorf("%w: r1", ErrCommandTimeout), "timeout"},
		{fmt.Errorf("%w: r1", ErrCommandFailed), "command"},
		{fmt.Errorf("%w: r1", ErrConnection), "connection"},
		{fmt.Errorf("%w: insert", ErrPersistence), "persistence"},
		{errors.New("weird"), "error"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
