package services

import (
	"fmt"

	"shop_ledger/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// Caller identifies who is acting on an order.
type Caller struct {
	UserID   string
	AdminKey string
}

type AuthorizationPolicy interface {
	Authorize(caller Caller, order *models.Order) error
}

type ownerOrAdminPolicy struct {
	adminKeyHash []byte
}

// NewAuthorizationPolicy allows the shop that owns an order, or anyone
// presenting the admin key whose bcrypt hash is adminKeyHash. An empty hash
// disables the admin path.
func NewAuthorizationPolicy(adminKeyHash string) AuthorizationPolicy {
	return &ownerOrAdminPolicy{adminKeyHash: []byte(adminKeyHash)}
}

func (p *ownerOrAdminPolicy) Authorize(caller Caller, order *models.Order) error {
	if caller.UserID != "" && caller.UserID == order.UserID {
		return nil
	}
	if caller.AdminKey != "" && len(p.adminKeyHash) > 0 {
		if bcrypt.CompareHashAndPassword(p.adminKeyHash, []byte(caller.AdminKey)) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: user %q may not act on order %s", ErrForbidden, caller.UserID, order.OrderID)
}

// HashAdminKey produces the value expected in ADMIN_KEY_HASH.
func HashAdminKey(key string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin key: %w", err)
	}
	return string(hashed), nil
}
