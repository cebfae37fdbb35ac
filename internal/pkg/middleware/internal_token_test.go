package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedApp(token string) *fiber.App {
	app := fiber.New()
	app.Get("/internal", InternalToken(token), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestInternalToken(t *testing.T) {
	app := newGuardedApp("s3cret")

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{name: "missing", want: fiber.StatusUnauthorized},
		{name: "wrong", header: InternalTokenHeader, value: "nope", want: fiber.StatusUnauthorized},
		{name: "header", header: InternalTokenHeader, value: "s3cret", want: fiber.StatusOK},
		{name: "bearer", header: fiber.HeaderAuthorization, value: "Bearer s3cret", want: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/internal", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestInternalTokenDisabledWithoutConfig(t *testing.T) {
	app := newGuardedApp("")

	req := httptest.NewRequest("GET", "/internal", nil)
	req.Header.Set(InternalTokenHeader, "")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
