package authentication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/jwtauth/v5"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("labcontrol-api/authentication")

var ErrInvalidCredentials = fmt.Errorf("invalid username or password")
var ErrNotAuthorized = fmt.Errorf("not authorized")

const TokenLifetime = time.Hour

const (
	ClaimUserID = "id"
	ClaimRoleID = "rolId"
)

var loginCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "labcontrol_logins_total",
	Help: "Number of login attempts by outcome.",
}, []string{"outcome"})

//go:generate moq -rm -out authentication_mock.go . Authenticator

type Authenticator interface {
	Login(ctx context.Context, req types.LoginRequest) (types.LoginResponse, error)
	VerifyAdmin(ctx context.Context, adminID uint, password string) error
}

type authenticator struct {
	users     database.UserRepository
	tokenAuth *jwtauth.JWTAuth
	now       func() time.Time
}

func New(users database.UserRepository, tokenAuth *jwtauth.JWTAuth) Authenticator {
	return &authenticator{
		users:     users,
		tokenAuth: tokenAuth,
		now:       time.Now,
	}
}

func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

func (a *authenticator) Login(ctx context.Context, req types.LoginRequest) (types.LoginResponse, error) {
	var err error

	ctx, span := tracer.Start(ctx, "login")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	logger := logging.GetFromContext(ctx)

	if err = validation.Struct(req); err != nil {
		loginCounter.WithLabelValues("invalid").Inc()
		return types.LoginResponse{}, err
	}

	user, err := a.verify(ctx, database.User{Username: req.Username}, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			loginCounter.WithLabelValues("rejected").Inc()
			logger.Info().Msg("login rejected")
		}
		return types.LoginResponse{}, err
	}

	claims := map[string]any{
		ClaimUserID: user.ID,
		ClaimRoleID: user.RoleID,
	}
	jwtauth.SetIssuedAt(claims, a.now())
	jwtauth.SetExpiry(claims, a.now().Add(TokenLifetime))

	_, token, err := a.tokenAuth.Encode(claims)
	if err != nil {
		return types.LoginResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}

	loginCounter.WithLabelValues("accepted").Inc()
	logger.Info().Uint("userID", user.ID).Msg("user logged in")

	return types.LoginResponse{
		Token: token,
		User: types.LoginUser{
			ID:       user.ID,
			Username: user.Username,
			RoleID:   user.RoleID,
		},
	}, nil
}

// VerifyAdmin checks the credentials of an administrator the same way Login does
// and fails with ErrNotAuthorized for anything but a matching admin.
func (a *authenticator) VerifyAdmin(ctx context.Context, adminID uint, password string) error {
	var err error

	ctx, span := tracer.Start(ctx, "verify-admin")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if adminID == 0 || password == "" {
		err = ErrNotAuthorized
		return err
	}

	user, err := a.verify(ctx, database.User{ID: adminID}, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			err = ErrNotAuthorized
		}
		return err
	}

	if user.RoleID != database.RoleAdmin {
		err = ErrNotAuthorized
		return err
	}

	return nil
}

// verify looks the user up by id or username and compares the password with the stored hash.
// Unknown users are compared against a dummy hash so both failures take the same time.
func (a *authenticator) verify(ctx context.Context, who database.User, password string) (database.User, error) {
	var user database.User
	var err error

	if who.ID != 0 {
		user, err = a.users.GetByID(ctx, who.ID)
	} else {
		user, err = a.users.GetByUsername(ctx, who.Username)
	}

	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			return database.User{}, err
		}
		bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return database.User{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return database.User{}, ErrInvalidCredentials
	}

	return user, nil
}

var dummy struct {
	once sync.Once
	hash []byte
}

func dummyHash() []byte {
	dummy.once.Do(func() {
		dummy.hash, _ = bcrypt.GenerateFromPassword([]byte("labcontrol"), database.PasswordCost)
	})
	return dummy.hash
}

// HashPassword returns the bcrypt hash stored for new users.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), database.PasswordCost)
	return string(b), err
}
