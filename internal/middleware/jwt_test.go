package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/utils"
)

const testSecret = "unit-test-secret"

func invoke(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := JWTAuth(testSecret)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, c
}

func TestJWTAuth_ValidToken(t *testing.T) {
	tok, err := utils.NewGuardianToken(testSecret, "grd_1", "Dana", 60)
	require.NoError(t, err)

	rec, c := invoke(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "grd_1", c.Get("guardian_id"))
	assert.Equal(t, "Dana", c.Get("guardian_name"))
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	rec, _ := invoke(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	tok, err := utils.NewGuardianToken("a-different-secret", "grd_1", "Dana", 60)
	require.NoError(t, err)

	rec, _ := invoke(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	tok, err := utils.NewGuardianToken(testSecret, "grd_1", "Dana", -5)
	require.NoError(t, err)

	rec, _ := invoke(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_GarbageToken(t *testing.T) {
	rec, _ := invoke(t, "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
