package notify

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

// WebsocketHandler streams notifications to each connected client as JSON
// frames until the client goes away.
func WebsocketHandler(hub *Hub, logger *zap.Logger) http.Handler {
	return websocket.Server{
		// Browser clients connect from the UI origin; the engine has no auth.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			defer func() { _ = conn.Close() }()

			ch, cancel := hub.Subscribe(DefaultBuffer)
			defer cancel()

			// Reader goroutine notices the client closing the socket.
			done := make(chan struct{})
			go func() {
				defer close(done)
				var discard string
				for {
					if err := websocket.Message.Receive(conn, &discard); err != nil {
						return
					}
				}
			}()

			logger.Debug("websocket subscriber connected", zap.String("remote", conn.Request().RemoteAddr))
			for {
				select {
				case <-done:
					return
				case n, ok := <-ch:
					if !ok {
						return
					}
					if err := websocket.JSON.Send(conn, n); err != nil {
						logger.Debug("websocket send failed", zap.Error(err))
						return
					}
				}
			}
		},
	}
}
