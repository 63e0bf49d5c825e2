package credential

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/pkg/errors"
)

// DaemonFetcher is the default TokenFetcher: a thin client for an
// external, opaque credential daemon reachable over a local stream
// socket. The daemon's own protocol is out of scope for this module; the
// client only needs a single newline-delimited JSON request/response.
type DaemonFetcher struct {
	socketPath string
	dialer     net.Dialer
}

// NewDaemonFetcher builds a client dialing socketPath on every request.
func NewDaemonFetcher(socketPath string) *DaemonFetcher {
	return &DaemonFetcher{socketPath: socketPath}
}

type daemonRequest struct {
	Service string `json:"service"`
	Account string `json:"account"`
}

type daemonResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// FetchToken dials the credential daemon and requests a token for
// (service, account). Connection failure is wrapped in
// ErrDaemonUnavailable so callers can treat it as non-fatal.
func (d *DaemonFetcher) FetchToken(ctx context.Context, service, account string) (string, error) {
	conn, err := d.dialer.DialContext(ctx, "unix", d.socketPath)
	if err != nil {
		return "", errors.Wrap(ErrDaemonUnavailable, err.Error())
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(daemonRequest{Service: service, Account: account}); err != nil {
		return "", errors.Wrap(err, "writing credential request")
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "reading credential response")
	}

	var resp daemonResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return "", errors.Wrap(err, "decoding credential response")
	}
	if resp.Error != "" {
		return "", errors.New(resp.Error)
	}
	return resp.Token, nil
}
