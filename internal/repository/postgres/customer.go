package postgres

import (
	"context"
	"fmt"

	"boxrental-backend/internal/domain"
)

type customerRepository struct {
	db queryer
}

func (r *customerRepository) Create(ctx context.Context, c *domain.Customer) error {
	query := `INSERT INTO customers (name, email, phone, national_id) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, c.Name, c.Email, c.Phone, c.NationalID).Scan(&c.ID, &c.CreatedAt)
	if isUniqueViolation(err) {
		return domain.InvalidInput("a customer with this national id already exists")
	}
	return mapError(err)
}

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	c := &domain.Customer{}
	query := `SELECT id, name, email, phone, national_id, created_at FROM customers WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.NationalID, &c.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("customer %d", id))
	}
	return c, nil
}

func (r *customerRepository) GetByNationalID(ctx context.Context, nationalID string) (*domain.Customer, error) {
	c := &domain.Customer{}
	query := `SELECT id, name, email, phone, national_id, created_at FROM customers WHERE national_id = $1`
	err := r.db.QueryRowContext(ctx, query, nationalID).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.NationalID, &c.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "customer by national id")
	}
	return c, nil
}
