package domain

import (
	"context"
	"strings"
	"time"
)

// User roles. Anonymous users hold temporary recording sessions and are
// garbage-collected elsewhere; archivist is the default registered role.
const (
	RoleAdmin     = "admin"
	RoleArchivist = "archivist"
	RoleAnon      = "anon"
)

// AnonUserPrefix is the username prefix for anonymous (temporary) users.
const AnonUserPrefix = "temp-"

// User represents a platform account. Username is the stable external key;
// MaxSize/MaxColl/Size are the storage quota fields and must only be changed
// through atomic multi-column writes so readers never observe a
// half-initialized account.
type User struct {
	BaseModel
	Username     string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:100" json:"name"`
	Desc         string    `gorm:"type:text" json:"desc"`
	Role         string    `gorm:"size:32;not null;default:archivist" json:"role"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	LastLogin    time.Time `json:"last_login"`
	MaxSize      int64     `gorm:"not null;default:0" json:"max_size"`
	MaxColl      int       `gorm:"not null;default:0" json:"max_coll"`
	Size         int64     `gorm:"not null;default:0" json:"size"`
}

// IsAdmin reports whether the user holds the superuser role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsAnon reports whether the user is an anonymous (temporary) account.
func (u *User) IsAnon() bool {
	return u.Role == RoleAnon || strings.HasPrefix(u.Username, AnonUserPrefix)
}

// IsAnonUsername reports whether a username names an anonymous account slot.
func IsAnonUsername(username string) bool {
	return strings.HasPrefix(username, AnonUserPrefix)
}

// QuotaDefaults carries the process-wide storage defaults applied to new
// accounts when the key-value store holds no override.
type QuotaDefaults struct {
	MaxSize int64
	MaxColl int
}

// UserSortKey names the supported sort fields of the user listing.
// The API accepts these with an optional leading '-' for descending order.
var UserSortKeys = map[string]string{
	"created":    "created_at",
	"email":      "email",
	"last_login": "last_login",
	"name":       "name",
	"username":   "username",
}

// UserRepository defines the data access interface for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, sortColumn string, desc bool) ([]User, error)
	Update(ctx context.Context, user *User) error
	// UpdateFields applies the given column values as one atomic write.
	UpdateFields(ctx context.Context, username string, fields map[string]any) error
	Delete(ctx context.Context, username string) error
}

// UserService defines the business logic interface for user accounts.
// It owns account creation end to end: password hashing, quota
// initialization, and the synthetic first collection happen in one
// transaction.
type UserService interface {
	CreateUser(ctx context.Context, in NewUser) (*User, error)
	GetUser(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context, sortKey string, desc bool) ([]User, error)
	UpdateUser(ctx context.Context, username string, upd UserUpdate, admin bool) (*User, error)
	DeleteUser(ctx context.Context, username string) error
	SetUserDesc(ctx context.Context, username, desc string) error
	GetAnonUser(ctx context.Context, current string) (*User, error)
	SpaceUtilization(ctx context.Context, user *User) SpaceUtilization
	DashboardJSON(ctx context.Context) ([]byte, error)
}

// NewUser is the validated input of account creation.
type NewUser struct {
	Username string
	Email    string
	Password string
	Role     string
	Name     string
}

// UserUpdate carries a partial account update. Nil fields were not supplied
// by the caller and must be left untouched.
type UserUpdate struct {
	Name    *string
	Desc    *string
	MaxSize *int64
	Role    *string
}

// Empty reports whether no field was supplied.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Desc == nil && u.MaxSize == nil && u.Role == nil
}
