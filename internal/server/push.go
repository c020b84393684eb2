package server

import (
	"net/http"

	"github.com/zishang520/socket.io/v2/socket"
)

// pushHandler mounts the socket.io push channel. The bearer token travels in
// the handshake auth payload; connections without a valid token are rejected
// before the connection event fires, with no retry offered.
func (s *Server) pushHandler() http.Handler {
	io := socket.NewServer(nil, nil)

	io.Use(func(client *socket.Socket, next func(*socket.ExtendedError)) {
		if _, ok := s.authenticate(handshakeToken(client)); !ok {
			s.logger.Warn("Push connection rejected.", "reason", "invalid token")
			next(socket.NewExtendedError("unauthorized", nil))
			return
		}
		next(nil)
	})

	io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		userID, ok := s.authenticate(handshakeToken(client))
		if !ok {
			// The middleware already vetted the handshake; a miss here means
			// the token was revoked in between.
			client.Disconnect(true)
			return
		}
		s.registry.Register(userID, client)
		s.logger.Info("Push channel connected.", "userId", userID)

		client.On("disconnect", func(...any) {
			s.registry.Unregister(userID)
			s.logger.Info("Push channel disconnected.", "userId", userID)
		})
	})

	return io.ServeHandler(nil)
}

// handshakeToken extracts the bearer token from the socket.io handshake
// auth payload, {"token": "..."}.
func handshakeToken(client *socket.Socket) string {
	auth, ok := client.Handshake().Auth.(map[string]any)
	if !ok {
		return ""
	}
	token, _ := auth["token"].(string)
	return token
}
