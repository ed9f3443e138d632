package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"go-pos-ws/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(signer *jwt.Signer) *fiber.App {
	app := fiber.New()
	app.Get("/whoami", RequireCashier(signer), func(c *fiber.Ctx) error {
		id, name := Cashier(c)
		return c.SendString(id + "/" + name)
	})
	app.Get("/settings", RequireCashier(signer), RequirePrivilege(PrivilegeSettingsUpdate), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func request(t *testing.T, app *fiber.App, path, authorization string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRequireCashier(t *testing.T) {
	signer := jwt.NewSigner("secret", time.Hour)
	app := newApp(signer)
	token, err := signer.GenerateToken("cashier-1", "Ana", nil)
	require.NoError(t, err)

	tests := []struct {
		name          string
		authorization string
		status        int
	}{
		{name: "missing", status: fiber.StatusUnauthorized},
		{name: "wrong scheme", authorization: "Basic " + token, status: fiber.StatusUnauthorized},
		{name: "garbage", authorization: "Bearer nope", status: fiber.StatusUnauthorized},
		{name: "valid", authorization: "Bearer " + token, status: fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, request(t, app, "/whoami", tt.authorization))
		})
	}

	other := jwt.NewSigner("another-secret", time.Hour)
	forged, err := other.GenerateToken("cashier-1", "Ana", nil)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/whoami", "Bearer "+forged))
}

func TestRequirePrivilege(t *testing.T) {
	signer := jwt.NewSigner("secret", time.Hour)
	app := newApp(signer)

	cashier, err := signer.GenerateToken("cashier-1", "Ana", []string{PrivilegeCatalogManage})
	require.NoError(t, err)
	manager, err := signer.GenerateToken("manager-1", "Dewi", []string{PrivilegeSettingsUpdate})
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusForbidden, request(t, app, "/settings", "Bearer "+cashier))
	assert.Equal(t, fiber.StatusNoContent, request(t, app, "/settings", "Bearer "+manager))
}
