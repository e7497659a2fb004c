package signal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dkeye/livesignal/internal/domain"
	"github.com/dkeye/livesignal/internal/protocol"
)

const maxBody = 1 << 20

func (c *Connection) post(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, httpsURL(c.server, path), bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.user, c.pass)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return b, resp.StatusCode, nil
}

func (c *Connection) fetchToken(ctx context.Context) (protocol.Token, error) {
	body, err := protocol.TokenRequest()
	if err != nil {
		return protocol.Token{}, err
	}
	b, status, err := c.post(ctx, pathAuth, body)
	if err != nil {
		return protocol.Token{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return protocol.Token{}, fmt.Errorf("%w: %s", ErrAuth, http.StatusText(status))
	case status != http.StatusOK:
		return protocol.Token{}, fmt.Errorf("%w: token request: %s", ErrBadServerResponse, http.StatusText(status))
	}
	tok, err := protocol.DecodeToken(b)
	if err != nil {
		return protocol.Token{}, fmt.Errorf("%w: %v", ErrBadServerResponse, err)
	}
	return tok, nil
}

func (c *Connection) fetchTargets(ctx context.Context) ([]domain.StreamAnnouncement, error) {
	body, err := protocol.TargetsRequest()
	if err != nil {
		return nil, err
	}
	b, status, err := c.post(ctx, pathTargets, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: targets request: %s", ErrBadServerResponse, http.StatusText(status))
	}
	return protocol.DecodeTargets(b)
}
