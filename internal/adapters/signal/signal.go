// Package signal connects to a live-streaming server: it fetches a client
// token, keeps the control and event websockets open and turns their
// frames into typed callbacks on the loop.
package signal

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dkeye/livesignal/internal/core"
)

var (
	ErrAuth              = core.ErrAuth
	ErrBadServerResponse = errors.New("bad server response")
	ErrClosed            = errors.New("connection closed")
	ErrBackpressure      = errors.New("backpressure")
)

const (
	pathAuth    = "/local/BodyWornLiveStandalone/auth.cgi"
	pathTargets = "/local/BodyWornLiveStandalone/status.cgi"
	pathControl = "/local/BodyWornLiveStandalone/client"
	pathEvents  = "/vapix/ws-data-stream"

	writeWait  = 5 * time.Second
	sendBuffer = 256
)

// Any server certificate is accepted.
var insecureTLS = &tls.Config{InsecureSkipVerify: true}

func defaultDialer() *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
		TLSClientConfig:  insecureTLS,
	}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: insecureTLS,
		},
	}
}

func httpsURL(server, path string) string {
	u := url.URL{Scheme: "https", Host: server, Path: path}
	return u.String()
}

func controlURL(server, token string) string {
	u := url.URL{
		Scheme:   "wss",
		Host:     server,
		Path:     pathControl,
		RawQuery: "authorization=" + url.QueryEscape(token),
	}
	return u.String()
}

func eventsURL(server string) string {
	u := url.URL{Scheme: "wss", Host: server, Path: pathEvents, RawQuery: "sources=events"}
	return u.String()
}
