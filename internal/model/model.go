// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is an application role of an account.
type Role string

// Known roles.
const (
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleParent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// TelegramPrincipal is the verified user claim embedded in Telegram initData.
// It is never persisted directly.
type TelegramPrincipal struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Account is the backing user record of a Telegram identity.
type Account struct {
	ID                    uuid.UUID // PK
	TelegramID            int64     // unique, immutable after creation
	FirstName             string
	LastName              string
	RegistrationCompleted bool
	SelectedRole          *Role // nil until chosen in the bot
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AdminCredential is a web admin panel login. Created out-of-band by the bootstrap operation.
type AdminCredential struct {
	ID           uuid.UUID
	Username     string // unique
	PasswordHash string // bcrypt
	FullName     *string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}

// KnowledgeEntry is a static knowledge base row used as chatbot context.
type KnowledgeEntry struct {
	ID       uuid.UUID
	Title    string
	Content  string
	Category *string
}

// ChatTurn is one question/answer pair of the chatbot history.
type ChatTurn struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Message   string
	Response  string
	CreatedAt time.Time
}

// NewsCategory is a news topic a user can subscribe to.
type NewsCategory struct {
	ID   uuid.UUID
	Name string
	Icon *string
}

// AdminSession is the result of a successful admin login.
type AdminSession struct {
	Token     string
	ExpiresAt time.Time
	Admin     AdminCredential
}

// MiniAppSession is the result of a successful Mini App (initData) login.
type MiniAppSession struct {
	Account    Account
	Roles      []Role
	Token      string
	ExpiresAt  time.Time
	SessionURL string
}
