package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"pagewatch/internal/fetch"
)

type fakeNetTimeout struct{}

func (fakeNetTimeout) Error() string   { return "i/o timeout" }
func (fakeNetTimeout) Timeout() bool   { return true }
func (fakeNetTimeout) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want fetch.Class
	}{
		{"deadline exceeded", context.DeadlineExceeded, fetch.ClassTimeout},
		{"wrapped deadline", fmt.Errorf("navigate: %w", context.DeadlineExceeded), fetch.ClassTimeout},
		{"net timeout", fakeNetTimeout{}, fetch.ClassTimeout},
		{"eof", io.EOF, fetch.ClassCrash},
		{"wrapped eof", fmt.Errorf("read frame: %w", io.EOF), fetch.ClassCrash},
		{"websocket drop", errors.New("websocket: close 1006 (abnormal closure)"), fetch.ClassCrash},
		{"cdp gone", errors.New("cdp connection lost"), fetch.ClassCrash},
		{"browser closed", errors.New("rod: browser has been closed"), fetch.ClassCrash},
		{"target closed", errors.New("Target closed"), fetch.ClassCrash},
		{"dial refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, fetch.ClassTransport},
		{"syscall error", os.NewSyscallError("connect", syscall.ENETUNREACH), fetch.ClassTransport},
		{"path error", &os.PathError{Op: "open", Path: "/dev/null", Err: syscall.EACCES}, fetch.ClassTransport},
		{"anything else", errors.New("element not interactable"), fetch.ClassUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := classify(tc.err)
			if f == nil {
				t.Fatal("classify returned nil")
			}
			if f.Class != tc.want {
				t.Fatalf("class = %s, want %s", f.Class, tc.want)
			}
			if !errors.Is(f, tc.err) && f.Err.Error() != tc.err.Error() {
				t.Fatalf("failure does not carry the cause: %v", f)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if f := classify(nil); f != nil {
		t.Fatalf("classify(nil) = %v", f)
	}
}
