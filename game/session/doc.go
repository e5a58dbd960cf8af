// Package session keeps the server's board sessions.
//
// A session owns one board engine built from a preset. Manager holds the
// boards in memory under case-insensitive IDs (random 4-character hex when
// none is given). With WithPersistence it also mirrors them to storage:
// sessions are written on creation, loaded lazily by Get and in bulk by
// LoadPersistedSessions.
//
//	store, _ := session.NewFilePersistence("sessions", presets)
//	manager := session.NewManagerWithPersistence(store,
//		session.WithLogger(logger),
//		session.WithMaxSessions(1000),
//	)
//	manager.LoadPersistedSessions()
//
// WithMaxSessions bounds memory. At the cap, the least recently used board
// is saved and dropped from memory; it comes back on its next Get. Without
// persistence, Create fails with ErrTooManySessions instead.
//
// FilePersistence writes one JSON file per session, replaced atomically.
// Each file embeds the preset the board was made from, so editing or
// deleting a preset file does not break existing sessions. Older files
// without a preset are rebuilt from the presets directory.
package session
