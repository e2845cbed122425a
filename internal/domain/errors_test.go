package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantClass ResultClass
		wantCode  ResultCode
	}{
		{"nil", nil, ClassSuccess, CodeChanged},
		{"validation", &ValidationError{Field: "address", Reason: "unspecified"}, ClassClientError, CodeBadRequest},
		{"wrapped validation", fmt.Errorf("hello: %w", &ValidationError{Reason: "bad"}), ClassClientError, CodeBadRequest},
		{"not registered", fmt.Errorf("rss from %s: %w", "fe80::1", ErrNotRegistered), ClassClientError, CodePreconditionFailed},
		{"unknown route", ErrUnknownRoute, ClassClientError, CodeNotFound},
		{"persistence", &PersistenceError{Op: "insert host", Err: errors.New("disk full")}, ClassServerError, CodeInternalServerError},
		{"anything else", errors.New("boom"), ClassServerError, CodeInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, code := Classify(tt.err)
			if class != tt.wantClass || code != tt.wantCode {
				t.Errorf("Classify() = %s/%s, want %s/%s", class, code, tt.wantClass, tt.wantCode)
			}
		})
	}
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := errors.New("locked")
	err := &PersistenceError{Op: "insert service", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected PersistenceError to unwrap to its cause")
	}
}
