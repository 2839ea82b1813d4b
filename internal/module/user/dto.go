package user

import (
	"time"

	"github.com/pagevault/pagevault/internal/domain"
)

// NewUserRequest represents the input for creating a user account.
type NewUserRequest struct {
	Username string `json:"username" form:"username" binding:"required,min=3,max=100,alphanum"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" form:"role" binding:"required,oneof=archivist admin"`
	Name     string `json:"name" form:"name" binding:"omitempty,max=100"`
}

// UpdateUserRequest represents a partial account update. Nil fields were not
// supplied and are left untouched. MaxSize and Role only take effect for
// admin callers.
type UpdateUserRequest struct {
	Name    *string `json:"name" binding:"omitempty,max=100"`
	Desc    *string `json:"desc" binding:"omitempty,max=10000"`
	MaxSize *int64  `json:"max_size" binding:"omitempty,min=0"`
	Role    *string `json:"role" binding:"omitempty,oneof=archivist admin"`
}

// Empty reports whether the request supplied no fields at all.
func (r UpdateUserRequest) Empty() bool {
	return r.Name == nil && r.Desc == nil && r.MaxSize == nil && r.Role == nil
}

// toUpdate converts the request into the domain update value.
func (r UpdateUserRequest) toUpdate() domain.UserUpdate {
	return domain.UserUpdate{
		Name:    r.Name,
		Desc:    r.Desc,
		MaxSize: r.MaxSize,
		Role:    r.Role,
	}
}

// UserView is the API representation of an account, including the computed
// storage quota triple.
type UserView struct {
	Username         string                  `json:"username"`
	Email            string                  `json:"email"`
	Name             string                  `json:"name"`
	Desc             string                  `json:"desc,omitempty"`
	Role             string                  `json:"role"`
	CreatedAt        time.Time               `json:"created_at"`
	LastLogin        time.Time               `json:"last_login"`
	SpaceUtilization domain.SpaceUtilization `json:"space_utilization"`
}

// UserDetailView extends UserView with the nested collection tree. The
// collections field is always a list, even for a single collection.
type UserDetailView struct {
	UserView
	Collections []domain.Collection `json:"collections"`
}

// dashboardUserView is a dashboard row: account info joined with collections,
// without the storage triple (the listing endpoint carries that).
type dashboardUserView struct {
	Username    string              `json:"username"`
	Email       string              `json:"email"`
	Name        string              `json:"name"`
	Role        string              `json:"role"`
	CreatedAt   time.Time           `json:"created_at"`
	LastLogin   time.Time           `json:"last_login"`
	Collections []domain.Collection `json:"collections"`
}

// normalizeCollections replaces nil slices in the collection tree with empty
// ones, so collections, recordings, and pages always serialize as lists.
func normalizeCollections(colls []domain.Collection) []domain.Collection {
	if colls == nil {
		return []domain.Collection{}
	}
	for i := range colls {
		if colls[i].Recordings == nil {
			colls[i].Recordings = []domain.Recording{}
		}
		for j := range colls[i].Recordings {
			if colls[i].Recordings[j].Pages == nil {
				colls[i].Recordings[j].Pages = []domain.Page{}
			}
		}
	}
	return colls
}

// newUserView builds the API view of a user with its quota triple.
func newUserView(u *domain.User, space domain.SpaceUtilization) UserView {
	return UserView{
		Username:         u.Username,
		Email:            u.Email,
		Name:             u.Name,
		Desc:             u.Desc,
		Role:             u.Role,
		CreatedAt:        u.CreatedAt,
		LastLogin:        u.LastLogin,
		SpaceUtilization: space,
	}
}
