package user

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pagevault/pagevault/internal/cache"
	"github.com/pagevault/pagevault/internal/domain"
	"github.com/pagevault/pagevault/internal/module/collection"
	"github.com/pagevault/pagevault/internal/pkg"
)

// Options carries the account defaults the service applies at creation time.
type Options struct {
	Quota domain.QuotaDefaults

	// DescTemplate may contain one %s verb replaced with the username.
	DescTemplate string

	// Synthetic first collection assigned to every new account.
	DefaultCollSlug  string
	DefaultCollTitle string
	DefaultCollDesc  string

	DashboardTTL time.Duration

	Mailing MailingList
}

// userService implements domain.UserService. It owns account creation end to
// end: credential hashing, quota initialization, and the synthetic first
// collection are applied in one transaction so no reader ever observes a
// half-initialized account.
type userService struct {
	db      *gorm.DB
	repo    domain.UserRepository
	collSvc domain.CollectionService
	store   cache.Store
	opts    Options
}

// NewUserService creates a new UserService.
func NewUserService(db *gorm.DB, repo domain.UserRepository, collSvc domain.CollectionService, store cache.Store, opts Options) domain.UserService {
	if opts.Mailing == nil {
		opts.Mailing = NopMailingList{}
	}
	if opts.DashboardTTL <= 0 {
		opts.DashboardTTL = 5 * time.Minute
	}
	return &userService{
		db:      db,
		repo:    repo,
		collSvc: collSvc,
		store:   store,
		opts:    opts,
	}
}

// CreateUser checks username/email collisions (accumulating both errors
// rather than stopping at the first), then persists the account, its quota
// fields, and the synthetic first collection in one transaction. The mailing
// list registration runs afterwards and is best effort.
func (s *userService) CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	fieldErrs := make(map[string]string)
	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		fieldErrs["username"] = "username already exists"
	} else if !domain.IsNotFound(err) {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		fieldErrs["email"] = "email already exists"
	} else if !domain.IsNotFound(err) {
		return nil, err
	}
	if len(fieldErrs) > 0 {
		return nil, domain.NewFieldErrors(fieldErrs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to hash password", err)
	}

	role := in.Role
	if role == "" {
		role = domain.RoleArchivist
	}

	maxSize, maxColl := s.quotaDefaults(ctx)

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		Role:         role,
		PasswordHash: string(hash),
		LastLogin:    time.Now().UTC(),
		MaxSize:      maxSize,
		MaxColl:      maxColl,
		Size:         0,
	}

	err = pkg.WithTx(s.db, func(tx *gorm.DB) error {
		txUsers := NewUserRepository(tx)
		if err := txUsers.Create(ctx, user); err != nil {
			return err
		}

		txColls := collection.NewCollectionService(collection.NewCollectionRepository(tx))
		desc := s.opts.DefaultCollDesc
		if strings.Contains(desc, "%s") {
			desc = fmt.Sprintf(desc, user.Username)
		}
		_, err := txColls.CreateCollection(ctx, user.ID,
			s.opts.DefaultCollSlug, s.opts.DefaultCollTitle, desc, false, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.opts.Mailing.Register(ctx, user.Username, user.Email, user.Name); err != nil {
		slog.WarnContext(ctx, "mailing list registration failed",
			slog.String("username", user.Username), slog.Any("error", err))
	}

	return user, nil
}

// GetUser retrieves a user by username.
func (s *userService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// ListUsers returns all users ordered by the given column. Callers resolve
// the API sort parameter first (pkg.ParseUserSort); listing is deliberately
// unpaginated.
func (s *userService) ListUsers(ctx context.Context, sortColumn string, desc bool) ([]domain.User, error) {
	return s.repo.List(ctx, sortColumn, desc)
}

// UpdateUser applies a partial update. Name and description may be changed by
// the owner; max_size and role only take effect for admin callers and are
// silently ignored otherwise. All columns are written in one atomic UPDATE.
func (s *userService) UpdateUser(ctx context.Context, username string, upd domain.UserUpdate, admin bool) (*domain.User, error) {
	if upd.Empty() {
		return nil, domain.NewAppError(domain.CodeValidation, "empty payload", nil)
	}

	if _, err := s.repo.GetByUsername(ctx, username); err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Desc != nil {
		fields["desc"] = *upd.Desc
	}
	if admin {
		if upd.MaxSize != nil {
			fields["max_size"] = *upd.MaxSize
		}
		if upd.Role != nil {
			role := *upd.Role
			if role == "" {
				role = domain.RoleArchivist
			}
			fields["role"] = role
		}
	}

	if len(fields) > 0 {
		if err := s.repo.UpdateFields(ctx, username, fields); err != nil {
			return nil, err
		}
	}

	return s.repo.GetByUsername(ctx, username)
}

// DeleteUser removes the account and everything it owns in one transaction.
func (s *userService) DeleteUser(ctx context.Context, username string) error {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	return pkg.WithTx(s.db, func(tx *gorm.DB) error {
		txColls := collection.NewCollectionService(collection.NewCollectionRepository(tx))
		if err := txColls.DeleteUserCollections(ctx, user.ID); err != nil {
			return err
		}
		return NewUserRepository(tx).Delete(ctx, username)
	})
}

// SetUserDesc writes raw description text for a user. Legacy path: no schema
// validation beyond size limits enforced at the column level.
func (s *userService) SetUserDesc(ctx context.Context, username, desc string) error {
	return s.repo.UpdateFields(ctx, username, map[string]any{"desc": desc})
}

// GetAnonUser returns the anonymous account of the current session, creating
// a fresh one when the session has none. Anonymous accounts get the same
// quota initialization as registered ones but no synthetic collection and no
// mailing list registration.
func (s *userService) GetAnonUser(ctx context.Context, current string) (*domain.User, error) {
	if current != "" && domain.IsAnonUsername(current) {
		if user, err := s.repo.GetByUsername(ctx, current); err == nil {
			return user, nil
		} else if !domain.IsNotFound(err) {
			return nil, err
		}
	}

	maxSize, maxColl := s.quotaDefaults(ctx)
	username := domain.AnonUserPrefix + uuid.NewString()[:8]

	user := &domain.User{
		Username:  username,
		Email:     username + "@anon.invalid",
		Role:      domain.RoleAnon,
		LastLogin: time.Now().UTC(),
		MaxSize:   maxSize,
		MaxColl:   maxColl,
		Size:      0,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SpaceUtilization computes the quota triple for a user. A zero allotment on
// the row falls back to the process-wide default, never to zero.
func (s *userService) SpaceUtilization(ctx context.Context, user *domain.User) domain.SpaceUtilization {
	total := user.MaxSize
	if total <= 0 {
		total, _ = s.quotaDefaults(ctx)
	}
	used := user.Size
	return domain.SpaceUtilization{
		Total:     total,
		Used:      used,
		Available: total - used,
	}
}

// DashboardJSON returns the admin dashboard aggregate as raw JSON. Within the
// TTL window the cached bytes are returned verbatim, so repeated requests are
// byte-identical. A cache-miss race between concurrent requests is fine: the
// recomputed values are equivalent and last-write-wins.
func (s *userService) DashboardJSON(ctx context.Context) ([]byte, error) {
	if cached, err := s.store.Get(ctx, cache.KeyDashboard); err == nil {
		return cached, nil
	} else if err != cache.ErrMiss {
		slog.WarnContext(ctx, "dashboard cache read failed", slog.Any("error", err))
	}

	users, err := s.repo.List(ctx, "username", false)
	if err != nil {
		return nil, err
	}

	rows := make([]dashboardUserView, 0, len(users))
	for i := range users {
		u := &users[i]
		colls, err := s.collSvc.ListCollections(ctx, u.ID, false)
		if err != nil {
			return nil, err
		}
		rows = append(rows, dashboardUserView{
			Username:    u.Username,
			Email:       u.Email,
			Name:        u.Name,
			Role:        u.Role,
			CreatedAt:   u.CreatedAt,
			LastLogin:   u.LastLogin,
			Collections: normalizeCollections(colls),
		})
	}

	data, err := json.Marshal(map[string]any{"users": rows})
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to encode dashboard", err)
	}

	if err := s.store.SetEx(ctx, cache.KeyDashboard, data, s.opts.DashboardTTL); err != nil {
		slog.WarnContext(ctx, "dashboard cache write failed", slog.Any("error", err))
	}

	return data, nil
}

// quotaDefaults reads the store-level override of the account defaults,
// falling back to the configured process-wide values.
func (s *userService) quotaDefaults(ctx context.Context) (int64, int) {
	maxSize := s.opts.Quota.MaxSize
	maxColl := s.opts.Quota.MaxColl

	if raw, err := s.store.Get(ctx, cache.KeyDefaultsMaxSize); err == nil {
		if v, err := strconv.ParseInt(string(raw), 10, 64); err == nil && v > 0 {
			maxSize = v
		}
	}
	if raw, err := s.store.Get(ctx, cache.KeyDefaultsMaxColl); err == nil {
		if v, err := strconv.Atoi(string(raw)); err == nil && v > 0 {
			maxColl = v
		}
	}

	return maxSize, maxColl
}
