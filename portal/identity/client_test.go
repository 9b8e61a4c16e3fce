// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/parentlink/parentlink/portal/provisioning"
)

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	createdID := uuid.New()

	var gotPath, gotAuth, gotAPIKey string
	var gotBody map[string]interface{}
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": createdID.String()})
	}))
	defer endpoint.Close()

	client := NewClient(zaptest.NewLogger(t), Config{
		URL:            endpoint.URL + "/",
		ServiceRoleKey: "service-role-key",
	})

	id, err := client.CreateUser(ctx, provisioning.NewIdentity{
		Email:    "parent@example.com",
		Password: "s3cretpw",
		Name:     "Asha's Parent",
		Username: "sch_101",
		Role:     "parent",
	})
	require.NoError(t, err)
	assert.Equal(t, createdID, id)

	assert.Equal(t, "/auth/v1/admin/users", gotPath)
	assert.Equal(t, "Bearer service-role-key", gotAuth)
	assert.Equal(t, "service-role-key", gotAPIKey)

	assert.Equal(t, "parent@example.com", gotBody["email"])
	assert.Equal(t, "s3cretpw", gotBody["password"])
	// Identities are created pre-confirmed so parents can log in at once.
	assert.Equal(t, true, gotBody["email_confirm"])
	metadata, ok := gotBody["user_metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sch_101", metadata["username"])
	assert.Equal(t, "parent", metadata["role"])
}

func TestCreateUserProviderError(t *testing.T) {
	ctx := context.Background()
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "A user with this email address has already been registered"})
	}))
	defer endpoint.Close()

	client := NewClient(zaptest.NewLogger(t), Config{URL: endpoint.URL, ServiceRoleKey: "key"})

	_, err := client.CreateUser(ctx, provisioning.NewIdentity{Email: "dup@example.com", Password: "pw123456"})
	require.Error(t, err)
	// The provider's message comes back verbatim.
	assert.Contains(t, err.Error(), "A user with this email address has already been registered")
}

func TestCreateUserNotConfigured(t *testing.T) {
	ctx := context.Background()
	client := NewClient(zaptest.NewLogger(t), Config{})

	_, err := client.CreateUser(ctx, provisioning.NewIdentity{Email: "a@example.com"})
	require.Error(t, err)
	assert.True(t, Error.Has(err))
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	var gotPath, gotMethod string
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	client := NewClient(zaptest.NewLogger(t), Config{URL: endpoint.URL, ServiceRoleKey: "key"})

	require.NoError(t, client.DeleteUser(ctx, id))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/auth/v1/admin/users/"+id.String(), gotPath)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"user not found"}`, http.StatusNotFound)
	}))
	defer failing.Close()

	client = NewClient(zaptest.NewLogger(t), Config{URL: failing.URL, ServiceRoleKey: "key"})
	err := client.DeleteUser(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found")
}
