package usecase

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// JWTの発行をusecaseから隠す約束
type TokenIssuer interface {
	Issue(userID int64, role model.Role, now time.Time) (token string, expiresAt time.Time, err error)
}

type AuthUsecase struct {
	users  repo.UserRepository
	issuer TokenIssuer
	cost   int
}

// DI
func NewAuthUsecase(users repo.UserRepository, issuer TokenIssuer, bcryptCost int) *AuthUsecase {
	return &AuthUsecase{users: users, issuer: issuer, cost: bcryptCost}
}

type RegisterInput struct {
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type UserDTO struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginOutput struct {
	User        UserDTO `json:"user"`
	AccessToken string  `json:"access_token"`
	ExpiresIn   int64   `json:"expires_in"`
}

// Register は会員登録。
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if _, err := mail.ParseAddress(email); err != nil {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid email")
	}
	if len(in.Password) < 12 {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "password too short")
	}

	//重複チェック
	existing, err := u.users.FindByEmail(ctx, email)
	if err != nil && err != repo.ErrUserNotFound {
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if existing != nil {
		return UserDTO{}, NewHTTPError(http.StatusConflict, "email_taken", "email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.cost)
	if err != nil {
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "hash error")
	}

	now := time.Now()
	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.users.Create(ctx, user); err != nil {
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return UserDTO{ID: user.ID, Email: user.Email, Role: string(user.Role)}, nil
}

// Login は認証してアクセストークンを返す。
// 失敗理由はまとめて401（メールの存在を漏らさない）。
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (LoginOutput, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return LoginOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "email and password required")
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err == repo.ErrUserNotFound {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if !user.IsActive {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}

	now := time.Now()
	token, expiresAt, err := u.issuer.Issue(user.ID, user.Role, now)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "token error")
	}

	//最終ログインの更新は失敗しても致命的ではない
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	return LoginOutput{
		User:        UserDTO{ID: user.ID, Email: user.Email, Role: string(user.Role)},
		AccessToken: token,
		ExpiresIn:   int64(expiresAt.Sub(now).Seconds()),
	}, nil
}
