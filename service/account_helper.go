package service

import (
	"context"
	"fmt"
	"strings"

	"luckystake/events"
	"luckystake/models"
)

// getOrCreateAccount is the single entry point for account creation. It
// must run inside an open unit of work.
func getOrCreateAccount(ctx context.Context, uow UnitOfWork, accountID string) (*models.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, &ValidationError{Field: "publicKey", Message: "is required"}
	}

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	account, err = uow.AccountRepository().Create(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	uow.EventBus().Publish(events.AccountCreatedEvent{AccountID: accountID})
	return account, nil
}
