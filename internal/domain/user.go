package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is a stored account used by the session-based identity provider.
type User struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
	Hash  string `db:"password_hash"`
	Role  string `db:"role"`
}

func (u User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Email: u.Email, Role: Role(u.Role)}
}

// Actor is the caller of a core operation as vouched for by the identity
// provider. It is passed explicitly to every operation that checks permissions.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether userID belongs to this actor.
func (a Actor) Owns(userID string) bool { return a.ID != "" && a.ID == userID }
