package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/access/student-42", "/api/access/:user"},
		{"/api/status/student-42", "/api/status/:user"},
		{"/api/mod/reports/7f3c/resolve", "/api/mod/reports/:id/resolve"},
		{"/api/mod/appeals/9a1b/resolve", "/api/mod/appeals/:id/resolve"},
		{"/api/mod/users/student-42/history", "/api/mod/users/:user/history"},
		{"/api/reports", "/api/reports"},
		{"/api/mod/overview", "/api/mod/overview"},
		{"/metrics", "/metrics"},
		{"/healthz", "/healthz"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.path))
		})
	}
}
