//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildingpro/sentinel/internal/models"
	"github.com/buildingpro/sentinel/internal/repositories"
	"github.com/buildingpro/sentinel/pkg/auth"
)

// TestPassword satisfies the strength policy; fixtures share it so
// login flows can be exercised end to end.
const TestPassword = "Aa1!aaaa"

// CreateVerifiedAccount inserts a verified account fixture.
func CreateVerifiedAccount(t *testing.T, pool *pgxpool.Pool, email string, role models.Role) *models.Account {
	t.Helper()

	ctx := context.Background()
	repo := repositories.NewAccountRepository(pool)

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("hashing fixture password: %v", err)
	}

	account, err := repo.Create(ctx, &models.Account{
		Email:      email,
		FirstName:  "Test",
		LastName:   "Account",
		Phone:      "+15550001234",
		SecretHash: hash,
		Role:       role,
		RoleCode:   "CODE-1",
		Verified:   true,
	})
	if err != nil {
		t.Fatalf("creating fixture account: %v", err)
	}
	return account
}

// CreateUnverifiedAccount inserts an unverified account fixture.
func CreateUnverifiedAccount(t *testing.T, pool *pgxpool.Pool, email string, role models.Role) *models.Account {
	t.Helper()

	ctx := context.Background()
	repo := repositories.NewAccountRepository(pool)

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("hashing fixture password: %v", err)
	}

	account, err := repo.ReplaceUnverified(ctx, &models.Account{
		Email:      email,
		SecretHash: hash,
		Role:       role,
	})
	if err != nil {
		t.Fatalf("creating unverified fixture: %v", err)
	}
	return account
}
