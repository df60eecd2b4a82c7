package lode

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"context deadline exceeded", ErrTimeout},
		{"connection timeout after 30s", ErrTimeout},
		{"AccessDenied: you do not have access", ErrAccessDenied},
		{"received status 403", ErrAccessDenied},
		{"open raw/page-0.png: permission denied", ErrPermissionDenied},
		{"open /tmp/file: EACCES", ErrPermissionDenied},
		{"write cropped/dirt.png: no space left on device", ErrDiskFull},
		{"quota exceeded for user", ErrDiskFull},
		{"open manifests/page-3.msgpack: no such file or directory", ErrNotFound},
		{"NoSuchKey: The specified key does not exist", ErrNotFound},
		{"SlowDown: please reduce request rate", ErrThrottled},
		{"TooManyRequests: rate limit exceeded", ErrThrottled},
		{"NoCredentialProviders: no valid credential providers", ErrAuth},
		{"received status 401", ErrAuth},
		{"dial tcp 127.0.0.1:9000: connection refused", ErrNetwork},
		{"DNS lookup failed for bucket.s3.amazonaws.com", ErrNetwork},
		{"something completely unexpected happened", ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got := classifyError(errors.New(tt.msg))
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyError(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := classifyError(nil); got != nil {
		t.Errorf("classifyError(nil) = %v, want nil", got)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "slow" }
func (timeoutError) Timeout() bool { return true }

func TestClassifyError_TimeoutInterface(t *testing.T) {
	if got := classifyError(timeoutError{}); got != ErrTimeout {
		t.Errorf("classifyError(timeout) = %v, want ErrTimeout", got)
	}
}

func TestWrapErrors(t *testing.T) {
	cause := errors.New("no space left on device")

	err := WrapWriteError(cause, "cropped/stone.png")
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if se.Op != "write" || se.Path != "cropped/stone.png" {
		t.Errorf("got op=%q path=%q", se.Op, se.Path)
	}
	if !errors.Is(err, ErrDiskFull) {
		t.Error("expected errors.Is(err, ErrDiskFull)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to remain in chain")
	}

	for name, fn := range map[string]func(error, string) error{
		"write":  WrapWriteError,
		"read":   WrapReadError,
		"delete": WrapDeleteError,
		"init":   WrapInitError,
	} {
		if fn(nil, "x") != nil {
			t.Errorf("%s: wrapping nil should return nil", name)
		}
	}
}
