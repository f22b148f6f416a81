package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/altayar/travel-payments/internal/payment/domain"
)

type CardStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewCardStore(log *slog.Logger, pool *pgxpool.Pool) *CardStore {
	return &CardStore{log: log, pool: pool}
}

const cardColumns = `id, user_id, provider, provider_token, card_mask, last_four,
	COALESCE(brand,''), COALESCE(expiry_month,''), COALESCE(expiry_year,''),
	COALESCE(holder_name,''), is_default, is_active, created_at, updated_at`

func scanCard(row pgx.Row) (domain.UserCard, error) {
	var c domain.UserCard
	err := row.Scan(&c.ID, &c.UserID, &c.Provider, &c.ProviderToken, &c.CardMask, &c.LastFour,
		&c.Brand, &c.ExpiryMonth, &c.ExpiryYear, &c.HolderName, &c.IsDefault, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserCard{}, domain.ErrNotFound
		}
		return domain.UserCard{}, err
	}
	return c, nil
}

func (s *CardStore) FindByToken(ctx context.Context, token string) (domain.UserCard, error) {
	return scanCard(s.pool.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM user_cards WHERE provider_token=$1`, token))
}

func (s *CardStore) Create(ctx context.Context, c *domain.UserCard) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_cards (id, user_id, provider, provider_token, card_mask, last_four,
			brand, expiry_month, expiry_year, holder_name, is_default, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		c.ID, c.UserID, c.Provider, c.ProviderToken, c.CardMask, c.LastFour,
		c.Brand, c.ExpiryMonth, c.ExpiryYear, c.HolderName, c.IsDefault, c.IsActive,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (s *CardStore) ListActive(ctx context.Context, userID string) ([]domain.UserCard, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+cardColumns+` FROM user_cards
		WHERE user_id=$1 AND is_active=true
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.UserCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *CardStore) Deactivate(ctx context.Context, userID, cardID string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE user_cards SET is_active=false, updated_at=now()
		WHERE id=$1 AND user_id=$2`, cardID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
