package middleware

import (
	"errors"
	"net/http"
	"strings"

	"keystore/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // string（IdPのsub）
	CtxUserRoleKey = "user_role" // string
)

var errNoToken = errors.New("no bearer token")

// bearerAuth用のJWT検証ミドルウェア。
func AuthJWT(cfg config.JWT) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, role, err := authenticate(c.Request().Header.Get("Authorization"), cfg.Secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, role)
			return next(c)
		}
	}
}

// ゲストも通すルート用。ヘッダが無ければそのまま、あれば検証する
func OptionalAuthJWT(cfg config.JWT) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, role, err := authenticate(c.Request().Header.Get("Authorization"), cfg.Secret)
			if errors.Is(err, errNoToken) {
				return next(c)
			}
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, role)
			return next(c)
		}
	}
}

func authenticate(authz string, secret string) (string, string, error) {
	if authz == "" {
		return "", "", errNoToken
	}

	//Bearer形式か確認してtokenを抜く
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "", errors.New("invalid authorization header")
	}
	rawToken := strings.TrimSpace(parts[1])
	if rawToken == "" {
		return "", "", errors.New("empty token")
	}

	//JWTをパースして検証する（exp/nbfはライブラリが見る）
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}

	//subはIdPのユーザーID（文字列）
	userID, err := parseString(claims["sub"])
	if err != nil || strings.TrimSpace(userID) == "" {
		return "", "", errors.New("invalid sub")
	}

	//roleが無ければUSER扱い
	role, _ := parseString(claims["role"])
	if role == "" {
		role = "USER"
	}

	return userID, role, nil
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Success: false, Error: msg}
}

func parseString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("invalid string")
	}
	return s, nil
}
