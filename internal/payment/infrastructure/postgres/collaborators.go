package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	bookingdomain "github.com/altayar/travel-payments/internal/booking/domain"
	orderdomain "github.com/altayar/travel-payments/internal/order/domain"
	"github.com/altayar/travel-payments/internal/payment/application"
	"github.com/altayar/travel-payments/internal/payment/domain"
)

// Read-only access to collaborator entities. Orders, bookings and users are
// owned elsewhere; the payments core only checks ownership and amounts here.

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore { return &OrderStore{pool: pool} }

func (s *OrderStore) GetForUser(ctx context.Context, id, userID string) (orderdomain.Order, error) {
	var o orderdomain.Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, number, user_id, total_amount, COALESCE(currency,''), status, payment_status
		FROM orders WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&o.ID, &o.Number, &o.UserID, &o.TotalAmount, &o.Currency, &o.Status, &o.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orderdomain.Order{}, domain.ErrNotFound
		}
		return orderdomain.Order{}, err
	}
	return o, nil
}

type BookingStore struct {
	pool *pgxpool.Pool
}

func NewBookingStore(pool *pgxpool.Pool) *BookingStore { return &BookingStore{pool: pool} }

func (s *BookingStore) GetForUser(ctx context.Context, id, userID string) (bookingdomain.Booking, error) {
	var b bookingdomain.Booking
	err := s.pool.QueryRow(ctx, `
		SELECT id, number, user_id, total_amount, COALESCE(currency,''), status, payment_status
		FROM bookings WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&b.ID, &b.Number, &b.UserID, &b.TotalAmount, &b.Currency, &b.Status, &b.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bookingdomain.Booking{}, domain.ErrNotFound
		}
		return bookingdomain.Booking{}, err
	}
	return b, nil
}

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore { return &UserStore{pool: pool} }

func (s *UserStore) Get(ctx context.Context, id string) (application.User, error) {
	var u application.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(email,''), COALESCE(phone,'')
		FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return application.User{}, domain.ErrNotFound
		}
		return application.User{}, err
	}
	return u, nil
}
