package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealdb.go"
)

func TestRPCBaseURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ws://localhost:8000/rpc", "ws://localhost:8000"},
		{"wss://db.example.com/rpc/", "wss://db.example.com"},
		{"ws://localhost:8000", "ws://localhost:8000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rpcBaseURL(tt.in), tt.in)
	}
}

func TestConfigCredentials(t *testing.T) {
	cfg := Config{Namespace: "feelfree", Database: "app", Username: "svc", Password: "pw"}

	assert.Equal(t, surrealdb.Auth{Username: "svc", Password: "pw"}, cfg.credentials())

	cfg.AuthLevel = AuthLevelDatabase
	assert.Equal(t, surrealdb.Auth{Namespace: "feelfree", Database: "app", Username: "svc", Password: "pw"}, cfg.credentials())
}

func TestConfigValidate(t *testing.T) {
	ok := Config{URL: "ws://localhost:8000/rpc", Namespace: "feelfree", Database: "app"}
	assert.NoError(t, ok.validate())

	bad := ok
	bad.AuthLevel = "scope"
	assert.ErrorContains(t, bad.validate(), `unknown surrealdb auth level "scope"`)

	assert.Error(t, Config{}.validate())
}
