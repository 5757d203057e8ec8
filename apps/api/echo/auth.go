package echoapi

import (
	"context"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	tokenAudience   = "Executives"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	Role         string   `json:"role,omitempty"` // admin | staff | executive
	Roles        []string `json:"roles,omitempty"`
}

type jwtAuth struct {
	issuer         string
	key            []byte
	expiration     time.Duration
	refreshExpires time.Duration
	nowFunc        func() time.Time
}

func newJWTAuth(conf *core.Config) *jwtAuth {
	return &jwtAuth{
		issuer:         conf.AppName,
		key:            []byte(conf.SecretKey),
		expiration:     conf.Server.JWTExpirationDelta,
		refreshExpires: conf.Server.JWTRefreshExpirationDelta,
		nowFunc:        time.Now,
	}
}

func (a *jwtAuth) config(lookup string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    a.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
		TokenLookup:   lookup,
	}
}

// middleware authenticates the bearer token of the Authorization header.
func (a *jwtAuth) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.config("header:" + echo.HeaderAuthorization))
}

// queryMiddleware authenticates the "token" query param, for websocket clients that cannot set headers.
func (a *jwtAuth) queryMiddleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.config("query:token"))
}

func (a *jwtAuth) claims(usr user.User, origIat ...int64) *Claims {
	now := a.nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.issuer,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.PrimaryRole(),
		Roles:        usr.Roles,
	}
}

// token generates a signed JWT token string representing the user Claims.
func (a *jwtAuth) token(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	ss, err := jwt.NewWithClaims(method, claims).SignedString(a.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// GenerateToken issues a bearer token for usr, signed with the secret key of conf.
func GenerateToken(conf *core.Config, usr user.User) (string, error) {
	a := newJWTAuth(conf)
	return a.token(a.claims(usr))
}

func (a *jwtAuth) authenticate(ctx context.Context, uname, pwd string, svc *user.Service) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.Active() {
		return nil, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return a.claims(usr), nil
}

func (a *jwtAuth) refresh(ctx echo.Context, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.Active() {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshExpires)
	if a.nowFunc().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := a.token(a.claims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// contextHasAnyRole reports whether a role of the token starts with one of prefixes.
func contextHasAnyRole(ctx echo.Context, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return false
	}
	for _, role := range claims.Roles {
		for _, prefix := range prefixes {
			if strings.HasPrefix(role, prefix) {
				return true
			}
		}
	}
	return false
}
