package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        Params
	}{
		{"defaults pass through", 1, 10, Params{Page: 1, Limit: 10, Offset: 0}},
		{"offset follows page", 3, 20, Params{Page: 3, Limit: 20, Offset: 40}},
		{"zero page falls back", 0, 10, Params{Page: 1, Limit: 10, Offset: 0}},
		{"negative page falls back", -5, 10, Params{Page: 1, Limit: 10, Offset: 0}},
		{"zero limit falls back", 2, 0, Params{Page: 2, Limit: 10, Offset: 10}},
		{"limit capped at max", 1, 1000, Params{Page: 1, Limit: 100, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.page, tt.limit))
		})
	}
}

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(query string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/?"+query, nil)
		return c
	}

	assert.Equal(t, Params{Page: 1, Limit: 10, Offset: 0}, Parse(newCtx("")))
	assert.Equal(t, Params{Page: 2, Limit: 25, Offset: 25}, Parse(newCtx("page=2&limit=25")))
	assert.Equal(t, Params{Page: 1, Limit: 10, Offset: 0}, Parse(newCtx("page=abc&limit=xyz")))
}
