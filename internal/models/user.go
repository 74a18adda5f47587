package models

// Role distinguishes the two user collections
type Role string

const (
	RoleOwner     Role = "owner"
	RoleRequester Role = "requester"
)

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleRequester
}

// Roles lists the user collections in lookup order
var Roles = []Role{RoleOwner, RoleRequester}

// User is an owner or requester document
type User struct {
	UID         string `json:"uid" bson:"_id" db:"UID"`
	Name        string `json:"name" bson:"name" db:"NAME"`
	Email       string `json:"email" bson:"email" db:"EMAIL"`
	Role        Role   `json:"role" bson:"role" db:"ROLE"`
	APIToken    string `json:"apiToken,omitempty" bson:"apiToken,omitempty" db:"API_TOKEN"`
	MongoUserID string `json:"mongoUserId,omitempty" bson:"mongoUserId,omitempty" db:"MONGO_USER_ID"`
	CreatedAt   string `json:"createdAt,omitempty" bson:"createdAt,omitempty" db:"CREATED_AT"`
}

// LinkMongoUserID records the foreign identity id. An empty id never
// replaces one that is already set. Reports whether the user changed.
func (u *User) LinkMongoUserID(id string) bool {
	if id == "" || u.MongoUserID == id {
		return false
	}
	u.MongoUserID = id
	return true
}

// Public returns a copy of the user without its API token
func (u User) Public() User {
	u.APIToken = ""
	return u
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     Role   `json:"role" binding:"required,oneof=owner requester"`
}

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     Role   `json:"role" binding:"required,oneof=owner requester"`
}

// Principal is the authenticated caller attached to a request context
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// AuthResponse is returned by login and registration
type AuthResponse struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}
