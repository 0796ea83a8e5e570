package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/txguard/internal/audit"
	pkgcrypto "github.com/and161185/txguard/internal/crypto"
	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/model"
	"github.com/and161185/txguard/internal/repository"
)

// CardService manages a user's encrypted payment cards.
type CardService interface {
	// AddCard validates, encrypts and stores a card. The CVV is discarded.
	AddCard(ctx context.Context, userID uuid.UUID, in model.CardInput, makeDefault bool) (*model.CardRecord, error)
	// ListCards returns active cards without decrypting them.
	ListCards(ctx context.Context, userID uuid.UUID) ([]model.CardRecord, error)
	// DefaultCard verifies and decrypts the user's default card.
	DefaultCard(ctx context.Context, userID uuid.UUID) (*model.CardRecord, model.CardData, error)
	// SetDefault marks a card as the user's default.
	SetDefault(ctx context.Context, userID, cardID uuid.UUID) (*model.CardRecord, error)
	// RemoveCard deactivates a card.
	RemoveCard(ctx context.Context, userID, cardID uuid.UUID) error
	// PurgeCard permanently deletes a card.
	PurgeCard(ctx context.Context, userID, cardID uuid.UUID) error
}

type CardServiceImpl struct {
	repo   repository.CardRepository
	cipher *pkgcrypto.Cipher
	policy string
	audit  audit.Recorder
	log    *zap.Logger
	now    func() time.Time
}

// CardOption customizes CardServiceImpl.
type CardOption func(*CardServiceImpl)

// WithCorruptionPolicy selects model.CorruptionDelete (default) or
// model.CorruptionDeactivate.
func WithCorruptionPolicy(p string) CardOption {
	return func(s *CardServiceImpl) { s.policy = p }
}

// WithAudit sets the security event recorder.
func WithAudit(r audit.Recorder) CardOption {
	return func(s *CardServiceImpl) { s.audit = r }
}

// WithCardClock overrides the clock used for expiry checks.
func WithCardClock(now func() time.Time) CardOption {
	return func(s *CardServiceImpl) { s.now = now }
}

// NewCardService constructs CardService.
func NewCardService(repo repository.CardRepository, cipher *pkgcrypto.Cipher, log *zap.Logger, opts ...CardOption) *CardServiceImpl {
	s := &CardServiceImpl{
		repo:   repo,
		cipher: cipher,
		policy: model.CorruptionDelete,
		audit:  audit.Nop{},
		log:    log,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddCard stores a new card. The user's first card always becomes the default.
func (s *CardServiceImpl) AddCard(ctx context.Context, userID uuid.UUID, in model.CardInput, makeDefault bool) (*model.CardRecord, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrAuthRequired
	}
	if !pkgcrypto.ValidateExpiry(in.Expiry, s.now()) {
		return nil, errs.ErrInvalidExpiry
	}
	sealed, err := s.cipher.EncryptCardData(in)
	if err != nil {
		return nil, err
	}

	if !makeDefault {
		_, err := s.repo.FindDefault(ctx, userID)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			makeDefault = true
		case err != nil:
			return nil, fmt.Errorf("find default: %w", err)
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	rec := &model.CardRecord{
		ID:        id,
		UserID:    userID,
		Card:      sealed,
		IsDefault: makeDefault,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	return rec, nil
}

// ListCards returns active cards, default first.
func (s *CardServiceImpl) ListCards(ctx context.Context, userID uuid.UUID) ([]model.CardRecord, error) {
	return s.repo.ListActive(ctx, userID)
}

// DefaultCard returns the decrypted default card. A record that fails the
// integrity hash or AEAD verification is removed under the configured policy
// and errs.ErrIntegrity is returned so the user can re-enter the card.
func (s *CardServiceImpl) DefaultCard(ctx context.Context, userID uuid.UUID) (*model.CardRecord, model.CardData, error) {
	rec, err := s.repo.FindDefault(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, model.CardData{}, errs.ErrCardNotFound
	}
	if err != nil {
		return nil, model.CardData{}, fmt.Errorf("find default: %w", err)
	}

	data, err := s.cipher.DecryptCardData(rec.Card)
	if errors.Is(err, errs.ErrIntegrity) {
		s.quarantine(ctx, rec, err)
		return nil, model.CardData{}, errs.ErrIntegrity
	}
	if err != nil {
		return nil, model.CardData{}, err
	}
	return rec, data, nil
}

func (s *CardServiceImpl) quarantine(ctx context.Context, rec *model.CardRecord, cause error) {
	var err error
	switch s.policy {
	case model.CorruptionDeactivate:
		err = s.repo.SoftDelete(ctx, rec.UserID, rec.ID)
	default:
		err = s.repo.Delete(ctx, rec.ID)
	}

	fields := []zap.Field{
		zap.String("card_id", rec.ID.String()),
		zap.String("user_id", rec.UserID.String()),
		zap.String("policy", s.policy),
		zap.NamedError("cause", cause),
	}
	if err != nil {
		s.log.Error("corrupted card record could not be removed", append(fields, zap.Error(err))...)
	} else {
		s.log.Error("corrupted card record removed", fields...)
	}
	s.audit.Record(ctx, audit.Event{
		Type:     audit.EventCardCorrupted,
		Severity: audit.SeverityHigh,
		UserID:   rec.UserID.String(),
		Detail:   "policy=" + s.policy,
	})
}

// SetDefault promotes an active card to default.
func (s *CardServiceImpl) SetDefault(ctx context.Context, userID, cardID uuid.UUID) (*model.CardRecord, error) {
	rec, err := s.get(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if rec.IsDefault {
		return rec, nil
	}
	rec.IsDefault = true
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	return rec, nil
}

// RemoveCard deactivates a card. Removing the default promotes the most
// recent remaining card.
func (s *CardServiceImpl) RemoveCard(ctx context.Context, userID, cardID uuid.UUID) error {
	rec, err := s.get(ctx, userID, cardID)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, userID, cardID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrCardNotFound
		}
		return fmt.Errorf("deactivate card: %w", err)
	}
	if rec.IsDefault {
		s.promoteDefault(ctx, userID)
	}
	return nil
}

// promoteDefault marks the newest remaining active card as default. Failures
// are logged only; the removal has already happened.
func (s *CardServiceImpl) promoteDefault(ctx context.Context, userID uuid.UUID) {
	rest, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		s.log.Warn("list cards for promotion", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if len(rest) == 0 {
		return
	}
	next := rest[0]
	next.IsDefault = true
	if err := s.repo.Update(ctx, &next); err != nil {
		s.log.Warn("promote default card", zap.String("card_id", next.ID.String()), zap.Error(err))
	}
}

// PurgeCard permanently deletes an active card owned by userID.
func (s *CardServiceImpl) PurgeCard(ctx context.Context, userID, cardID uuid.UUID) error {
	rec, err := s.get(ctx, userID, cardID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrCardNotFound
		}
		return fmt.Errorf("delete card: %w", err)
	}
	if rec.IsDefault {
		s.promoteDefault(ctx, userID)
	}
	return nil
}

func (s *CardServiceImpl) get(ctx context.Context, userID, cardID uuid.UUID) (*model.CardRecord, error) {
	rec, err := s.repo.GetByID(ctx, userID, cardID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return rec, nil
}
