package domain

// Turn is a single persisted message in a session's history. Turns are
// immutable once written and are appended in user/assistant pairs.
type Turn struct {
	Role    string
	Content string
}

// UserProfile is the read-only profile record owned by the auth collaborator.
// All fields may be empty; prompt assembly substitutes placeholders.
type UserProfile struct {
	Email  string
	Name   string
	Domain string
	Age    string
}
