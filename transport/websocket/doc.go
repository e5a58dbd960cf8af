// Package websocket pushes live board updates to browser viewers.
//
// A central Hub tracks the clients watching each session. Clients connect
// with the session ID, receive a snapshot frame with the current board, and
// then a JSON Message after every change to that session's board: a
// state_update frame carrying the full board state, or an event frame such
// as path_found.
//
// All bookkeeping happens on the goroutine running Hub.Run; the broadcast
// helpers only enqueue messages, so they are safe to call from request
// handlers and never block them. Each client has its own write goroutine
// that also sends pings, and a read goroutine that drops the client when
// the connection closes.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		id := r.URL.Query().Get("session")
//		hub.ServeWS(w, r, id, currentState(id))
//	})
//	hub.BroadcastToSession(sessionID, state)
package websocket
