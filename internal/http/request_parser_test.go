package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestBodyParser_Form(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader("title=+Lunch%00+&amount=12.50&category_id=c1"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p, resp := parseBody(r)
	require.Nil(t, resp)
	in := expenseInput(p)
	assert.Equal(t, "Lunch", in.Title)
	assert.Equal(t, "12.50", in.Amount)
	assert.Equal(t, "c1", in.CategoryID)
	assert.False(t, p.IsJSON())
}

func TestRequestBodyParser_JSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "/categories/c1", strings.NewReader(`{"name":"Food","budget":150}`))
	r.Header.Set("Content-Type", "application/json")

	p, resp := parseBody(r)
	require.Nil(t, resp)
	in := categoryInput(p)
	assert.Equal(t, "Food", in.Name)
	assert.Equal(t, "150", in.Budget)
	assert.True(t, p.IsJSON())
}

func TestRequestBodyParser_PasswordsKeepWhitespace(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=+ada%40example.com&password=+secret+"))
	p, resp := parseBody(r)
	require.Nil(t, resp)

	c := credentialsInput(p)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, " secret ", c.Password)
}

func TestRequestBodyParser_Errors(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"title":`))
	_, resp := parseBody(r)
	require.NotNil(t, resp)
	rec := httptest.NewRecorder()
	resp.Write(rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := strings.Repeat("a", maxBodyBytes+10)
	r = httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader("title="+big))
	_, resp = parseBody(r)
	require.NotNil(t, resp)
	rec = httptest.NewRecorder()
	resp.Write(rec)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                      "/",
		"/dashboard":            "/dashboard",
		"/invoice?currency=EUR": "/invoice?currency=EUR",
		"//evil.example":        "/",
		"https://evil.example/": "/",
		"/\\evil.example":       "/",
		"dashboard":             "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), "safeNext(%q)", in)
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\tb", sanitizeInput("  a\tb\x07 "))
}
