// Package referral implements the invite-code reward rules: every member owns
// one immutable code, may redeem someone else's code once in their lifetime,
// and each successful redemption credits the code's owner with one point.
package referral

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourname/gatekeeper-bot/internal/domain"
	"github.com/yourname/gatekeeper-bot/internal/repo"
)

// Rejection reasons. Callers are expected to stay silent on all of these so
// redemption outcomes cannot be used as an oracle for probing codes.
var (
	ErrSuspect      = errors.New("suspect user")
	ErrCodeUsed     = errors.New("code already redeemed")
	ErrUnknownCode  = errors.New("unknown code")
	ErrSelfReferral = errors.New("self referral")
)

// Store is the slice of the user repository the ledger needs.
type Store interface {
	GetOrCreate(ctx context.Context, m domain.Member) (domain.UserRecord, error)
	FindByCode(ctx context.Context, code string) (domain.UserRecord, error)
	AddPoint(ctx context.Context, id string) error
	MarkCodeUsed(ctx context.Context, id string) error
}

type Ledger struct {
	store Store
	log   *zap.Logger
}

func NewLedger(store Store, log *zap.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// Code returns the member's own referral code, creating the record on first
// lookup. Always allowed, suspect or not.
func (l *Ledger) Code(ctx context.Context, m domain.Member) (string, error) {
	rec, err := l.store.GetOrCreate(ctx, m)
	if err != nil {
		return "", err
	}
	return rec.Code, nil
}

// Points returns the member's current referral point total.
func (l *Ledger) Points(ctx context.Context, m domain.Member) (int64, error) {
	rec, err := l.store.GetOrCreate(ctx, m)
	if err != nil {
		return 0, err
	}
	return rec.Points, nil
}

// Redeem submits claimedCode on behalf of m and credits the code's owner.
//
// The point credit lands before the submitter's codeUsed flag is set: if the
// process dies between the two writes the submitter can safely retry, whereas
// the reverse order could leave a referrer permanently uncredited.
func (l *Ledger) Redeem(ctx context.Context, m domain.Member, claimedCode string) error {
	rec, err := l.store.GetOrCreate(ctx, m)
	if err != nil {
		return err
	}
	if rec.Suspect {
		return ErrSuspect
	}
	if rec.CodeUsed {
		return ErrCodeUsed
	}

	referrer, err := l.store.FindByCode(ctx, claimedCode)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUnknownCode
	}
	if err != nil {
		return err
	}
	if referrer.Code == rec.Code {
		return ErrSelfReferral
	}

	if err := l.store.AddPoint(ctx, referrer.ID); err != nil {
		return fmt.Errorf("credit referrer: %w", err)
	}
	if err := l.store.MarkCodeUsed(ctx, rec.ID); err != nil {
		return fmt.Errorf("mark code used: %w", err)
	}

	l.log.Info("code redeemed",
		zap.String("user", rec.ID),
		zap.String("referrer", referrer.ID))
	return nil
}

// IsRejection reports whether err is a policy rejection rather than a
// transient failure. Rejections are silent no-ops toward the user.
func IsRejection(err error) bool {
	return errors.Is(err, ErrSuspect) ||
		errors.Is(err, ErrCodeUsed) ||
		errors.Is(err, ErrUnknownCode) ||
		errors.Is(err, ErrSelfReferral)
}
