package relay

import (
	"context"
	"net"
	"net/http"

	"github.com/OpenAgentsInc/pylon"
)

const (
	wsKey = iota
	internalCallKey
)

func GetConnection(ctx context.Context) *WebSocket {
	wsi := ctx.Value(wsKey)
	if wsi != nil {
		return wsi.(*WebSocket)
	}
	return nil
}

// IsInternalCall returns true when a call to QueryStored, for example, is being made because of a deletion
// or expiration request.
func IsInternalCall(ctx context.Context) bool {
	return ctx.Value(internalCallKey) != nil
}

func GetIP(ctx context.Context) string {
	conn := GetConnection(ctx)
	if conn == nil {
		return ""
	}

	return GetIPFromRequest(conn.Request)
}

func GetIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func SendNotice(ctx context.Context, msg string) {
	GetConnection(ctx).WriteEnvelope(nostr.NoticeEnvelope(msg))
}
