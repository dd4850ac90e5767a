package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTooMany = errors.New("too many requests for thread")

type askRequest struct {
	Query string `json:"query" validate:"required,max=20"`
	URL   string `json:"url" validate:"omitempty,url"`
}

func decodeBody(t *testing.T, body io.Reader) ErrorBody {
	t.Helper()
	var out ErrorBody
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    askRequest
		fields []string
	}{
		{"valid", askRequest{Query: "hi"}, nil},
		{"missing query", askRequest{}, []string{"query"}},
		{"bad url and long query", askRequest{Query: "this query is far too long", URL: "nope"}, []string{"query", "url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var vErr *RequestValidationError
			require.ErrorAs(t, err, &vErr)
			var got []string
			for _, f := range vErr.Fields {
				got = append(got, f.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestErrorHandlerMiddleware(t *testing.T) {
	RegisterErrorCode(errTooMany, fiber.StatusTooManyRequests)

	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "nothing here") })
	app.Get("/mapped", func(c *fiber.Ctx) error { return fmt.Errorf("run: %w", errTooMany) })
	app.Get("/validation", func(c *fiber.Ctx) error { return ValidateRequest(askRequest{}) })
	app.Get("/unknown", func(c *fiber.Ctx) error { return errors.New("db exploded") })
	app.Get("/ok", func(c *fiber.Ctx) error { return c.JSON(SuccessResponse("fine", 1)) })

	tests := []struct {
		path    string
		code    int
		message string
	}{
		{"/fiber", 404, "nothing here"},
		{"/mapped", 429, "run: too many requests for thread"},
		{"/validation", 400, "Validation failed"},
		{"/unknown", 500, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
			body := decodeBody(t, resp.Body)
			assert.False(t, body.Success)
			assert.Equal(t, tt.message, body.Message)
		})
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestJwtMiddleware(t *testing.T) {
	const secret = "s3cret"
	app := fiber.New()
	app.Get("/guarded", JwtMiddleware(secret), func(c *fiber.Ctx) error {
		return c.SendString(fmt.Sprint(c.Locals("subject")))
	})

	sign := func(key string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "operator",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		s, err := tok.SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", 401},
		{"wrong scheme", "Basic abc", 401},
		{"wrong key", "Bearer " + sign("other"), 401},
		{"valid", "Bearer " + sign(secret), 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/guarded", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
			if tt.code == 200 {
				b, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "operator", string(b))
			}
		})
	}
}
