package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/model"
)

// CardRepo implements CardRepository using PostgreSQL.
type CardRepo struct{ db *DB }

// NewCardRepo constructs a card repository.
func NewCardRepo(db *DB) *CardRepo { return &CardRepo{db: db} }

const cardCols = `id, user_id, number_ct, number_iv, number_tag, expiry_ct, expiry_iv, expiry_tag,
integrity_hash, last_four, brand, cardholder_name, is_default, is_active, created_at, updated_at`

func scanCard(row pgx.Row) (*model.CardRecord, error) {
	var (
		rc    model.CardRecord
		brand string
	)
	err := row.Scan(
		&rc.ID, &rc.UserID,
		&rc.Card.CardNumber.Ciphertext, &rc.Card.CardNumber.IV, &rc.Card.CardNumber.AuthTag,
		&rc.Card.Expiry.Ciphertext, &rc.Card.Expiry.IV, &rc.Card.Expiry.AuthTag,
		&rc.Card.IntegrityHash, &rc.Card.LastFourDigits, &brand, &rc.Card.CardholderName,
		&rc.IsDefault, &rc.IsActive, &rc.CreatedAt, &rc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rc.Card.CardBrand = model.CardBrand(brand)
	return &rc, nil
}

func (r *CardRepo) getOne(ctx context.Context, q string, args ...any) (*model.CardRecord, error) {
	rc, err := scanCard(r.db.Pool.QueryRow(ctx, q, args...))
	switch {
	case err == nil:
		return rc, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, errs.ErrNotFound
	default:
		return nil, err
	}
}

// FindDefault returns the user's active default card.
func (r *CardRepo) FindDefault(ctx context.Context, userID uuid.UUID) (*model.CardRecord, error) {
	return r.getOne(ctx, `SELECT `+cardCols+` FROM payment_cards
WHERE user_id=$1 AND is_default AND is_active`, userID)
}

// GetByID returns an active card owned by userID.
func (r *CardRepo) GetByID(ctx context.Context, userID, cardID uuid.UUID) (*model.CardRecord, error) {
	return r.getOne(ctx, `SELECT `+cardCols+` FROM payment_cards
WHERE user_id=$1 AND id=$2 AND is_active`, userID, cardID)
}

// ListActive returns active cards, default first then newest.
func (r *CardRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]model.CardRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+cardCols+` FROM payment_cards
WHERE user_id=$1 AND is_active
ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CardRecord
	for rows.Next() {
		rc, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rc)
	}
	return out, rows.Err()
}

const unsetDefault = `UPDATE payment_cards SET is_default=false, updated_at=now()
WHERE user_id=$1 AND is_default AND id<>$2`

// Create inserts rec, demoting the previous default when rec is default.
func (r *CardRepo) Create(ctx context.Context, rec *model.CardRecord) error {
	const ins = `
INSERT INTO payment_cards (id, user_id, number_ct, number_iv, number_tag, expiry_ct, expiry_iv, expiry_tag,
  integrity_hash, last_four, brand, cardholder_name, is_default, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING created_at, updated_at`
	c := rec.Card
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if rec.IsDefault {
			if _, err := tx.Exec(ctx, unsetDefault, rec.UserID, rec.ID); err != nil {
				return fmt.Errorf("unset default: %w", err)
			}
		}
		err := tx.QueryRow(ctx, ins,
			rec.ID, rec.UserID,
			c.CardNumber.Ciphertext, c.CardNumber.IV, c.CardNumber.AuthTag,
			c.Expiry.Ciphertext, c.Expiry.IV, c.Expiry.AuthTag,
			c.IntegrityHash, c.LastFourDigits, string(c.CardBrand), c.CardholderName,
			rec.IsDefault, rec.IsActive,
		).Scan(&rec.CreatedAt, &rec.UpdatedAt)
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	})
}

// Update rewrites an active card, demoting the previous default when rec is default.
func (r *CardRepo) Update(ctx context.Context, rec *model.CardRecord) error {
	const upd = `
UPDATE payment_cards SET
  number_ct=$3, number_iv=$4, number_tag=$5, expiry_ct=$6, expiry_iv=$7, expiry_tag=$8,
  integrity_hash=$9, last_four=$10, brand=$11, cardholder_name=$12,
  is_default=$13, is_active=$14, updated_at=now()
WHERE id=$1 AND user_id=$2
RETURNING updated_at`
	c := rec.Card
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if rec.IsDefault {
			if _, err := tx.Exec(ctx, unsetDefault, rec.UserID, rec.ID); err != nil {
				return fmt.Errorf("unset default: %w", err)
			}
		}
		err := tx.QueryRow(ctx, upd,
			rec.ID, rec.UserID,
			c.CardNumber.Ciphertext, c.CardNumber.IV, c.CardNumber.AuthTag,
			c.Expiry.Ciphertext, c.Expiry.IV, c.Expiry.AuthTag,
			c.IntegrityHash, c.LastFourDigits, string(c.CardBrand), c.CardholderName,
			rec.IsDefault, rec.IsActive,
		).Scan(&rec.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	})
}

// SoftDelete deactivates a card and clears its default flag.
func (r *CardRepo) SoftDelete(ctx context.Context, userID, cardID uuid.UUID) error {
	const q = `UPDATE payment_cards SET is_active=false, is_default=false, updated_at=now()
WHERE id=$1 AND user_id=$2 AND is_active`
	tag, err := r.db.Pool.Exec(ctx, q, cardID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a card row.
func (r *CardRepo) Delete(ctx context.Context, cardID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM payment_cards WHERE id=$1`, cardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
