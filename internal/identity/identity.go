package identity

import "context"

// User is a course-roster entry as reported by the identity service.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Access describes a caller's standing in a course.
type Access struct {
	Enrolled bool `json:"enrolled"`
	Staff    bool `json:"staff"`
}

// Adapter resolves enrollment status and roster data for a course. Identity
// and enrollment live in an external service; this boundary is all the chat
// core needs from it.
type Adapter interface {
	CheckAccess(ctx context.Context, courseID string, userID int) (Access, error)
	CourseRoster(ctx context.Context, courseID string) ([]User, error)
}
