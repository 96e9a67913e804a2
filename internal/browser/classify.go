package browser

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"

	"pagewatch/internal/fetch"
)

// sessionLossMarkers identify a dead or force-closed browser session. CDP
// surfaces these as opaque errors, so substring matching is the only
// reliable handle we have on them.
var sessionLossMarkers = []string{
	"websocket",
	"cdp connection",
	"connection closed",
	"browser has been closed",
	"target closed",
	"session closed",
	"context canceled by browser",
}

// classify maps a raw fetch error into the closed failure taxonomy.
func classify(err error) *fetch.Failure {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &fetch.Failure{Class: fetch.ClassTimeout, Err: err}
	case isTimeout(err):
		return &fetch.Failure{Class: fetch.ClassTimeout, Err: err}
	case isSessionLoss(err):
		return &fetch.Failure{Class: fetch.ClassCrash, Err: err}
	case isTransport(err):
		return &fetch.Failure{Class: fetch.ClassTransport, Err: err}
	default:
		return &fetch.Failure{Class: fetch.ClassUnknown, Err: err}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isSessionLoss(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range sessionLossMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func isTransport(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return true
	}
	var pathErr *os.PathError
	return errors.As(err, &pathErr)
}
