package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/altayar/travel-payments/internal/payment/domain"
)

// Vault manages tokenized cards. A simpler, loosely-coupled sibling of the
// reconciler: it shares the webhook surface but never touches payment state.
type Vault struct {
	log         *slog.Logger
	cards       CardStore
	users       UserReader
	gateway     Gateway
	redirectURL string
}

func NewVault(log *slog.Logger, cards CardStore, users UserReader, gateway Gateway, redirectURL string) *Vault {
	return &Vault{log: log, cards: cards, users: users, gateway: gateway, redirectURL: redirectURL}
}

// InitTokenization opens a hosted card-entry session tagged with the user id
// so the eventual token webhook can be attributed.
func (v *Vault) InitTokenization(ctx context.Context, userID string) (string, error) {
	user, err := v.users.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", userID, err)
	}
	return v.gateway.CreateCardTokenURL(ctx, Customer{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Phone:     user.Phone,
	}, v.redirectURL)
}

// ProcessTokenWebhook stores a newly vaulted card. Redelivered token payloads
// are a no-op.
func (v *Vault) ProcessTokenWebhook(ctx context.Context, p domain.WebhookPayload) error {
	if p.CustomerKey == "" || p.CardToken == "" {
		v.log.Warn("token webhook missing required fields")
		return nil
	}

	_, err := v.cards.FindByToken(ctx, p.CardToken)
	switch {
	case err == nil:
		v.log.Info("card already tokenized", "user_id", p.CustomerKey)
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	lastFour := p.CardLastFour
	if lastFour == "" {
		lastFour = "0000"
	}
	brand := p.CardBrand
	if brand == "" {
		brand = "Unknown"
	}

	card := &domain.UserCard{
		ID:            uuid.NewString(),
		UserID:        p.CustomerKey,
		Provider:      domain.ProviderFawaterk,
		ProviderToken: p.CardToken,
		CardMask:      fmt.Sprintf("xxxx-xxxx-xxxx-%s", lastFour),
		LastFour:      lastFour,
		Brand:         brand,
		ExpiryMonth:   p.CardExpiryMon,
		ExpiryYear:    p.CardExpiryYr,
		HolderName:    p.HolderName,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := v.cards.Create(ctx, card); err != nil {
		return err
	}
	v.log.Info("card tokenized", "user_id", p.CustomerKey, "brand", brand)
	return nil
}

func (v *Vault) ListCards(ctx context.Context, userID string) ([]domain.UserCard, error) {
	return v.cards.ListActive(ctx, userID)
}

// DeleteCard soft-deactivates; card history is never hard-deleted.
func (v *Vault) DeleteCard(ctx context.Context, userID, cardID string) error {
	return v.cards.Deactivate(ctx, userID, cardID)
}
