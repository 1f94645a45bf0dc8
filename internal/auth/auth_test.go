package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalChecker(t *testing.T) {
	c := LocalChecker{Username: "admin", Password: "s3cret"}
	ctx := context.Background()

	tests := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{"match", Credentials{"admin", "s3cret"}, true},
		{"wrong password", Credentials{"admin", "nope"}, false},
		{"wrong user", Credentials{"root", "s3cret"}, false},
		{"case matters", Credentials{"Admin", "s3cret"}, false},
		{"empty", Credentials{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Check(ctx, tt.creds)
			assert.Equal(t, tt.want, res.Valid)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestLocalChecker_Unconfigured(t *testing.T) {
	res := LocalChecker{}.Check(context.Background(), Credentials{"", ""})
	assert.False(t, res.Valid)
	assert.Equal(t, MsgNotConfigured, res.Message)
}

func TestNewChecker(t *testing.T) {
	c, err := NewChecker(Config{Mode: "", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.IsType(t, LocalChecker{}, c)

	c, err = NewChecker(Config{Mode: "API", APIBase: "http://example"})
	require.NoError(t, err)
	assert.IsType(t, &APIChecker{}, c)

	_, err = NewChecker(Config{Mode: "oauth"})
	require.Error(t, err)
}
