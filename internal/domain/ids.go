// Package domain contains entity types without logic, just meta-data.
package domain

type (
	// UserID is the authenticated participant identity. One media session
	// exists per UserID across the whole server, regardless of room.
	UserID string

	// RoomID names a logical room. Rooms are implicit: one exists only
	// while it holds registered tracks or event subscribers.
	RoomID string
)
