package repo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/yourname/gatekeeper-bot/internal/domain"
)

var ErrNotFound = errors.New("user not found")

// codeBytes sized so codes render as 8 hex characters.
const (
	codeBytes    = 4
	codeAttempts = 5
)

type Users struct{ col *mongo.Collection }

func NewUsers(database *mongo.Database) *Users {
	return &Users{col: database.Collection("users")}
}

// GetOrCreate returns the member's record, creating it on first lookup.
// Creation is an upsert with $setOnInsert so two near-simultaneous first
// lookups converge on a single document. A duplicate-key error means the
// freshly generated code collided with an existing one; retry with a new
// code up to codeAttempts times.
func (r *Users) GetOrCreate(ctx context.Context, m domain.Member) (domain.UserRecord, error) {
	var rec domain.UserRecord
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newReferralCode()
		if err != nil {
			return rec, err
		}

		opts := options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After)
		res := r.col.FindOneAndUpdate(ctx,
			bson.M{"_id": m.ID},
			bson.M{"$setOnInsert": bson.M{
				"OG":             false,
				"code":           code,
				"accountCreated": m.CreatedAt,
				"walletAddress":  "",
				"points":         int64(0),
				"suspect":        domain.IsSuspect(m.CreatedAt, time.Now()),
				"codeUsed":       false,
			}},
			opts,
		)
		err = res.Decode(&rec)
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return rec, fmt.Errorf("get or create user %s: %w", m.ID, err)
		}
		return rec, nil
	}
	return rec, fmt.Errorf("get or create user %s: code collision retries exhausted", m.ID)
}

// FindByCode is the point query on the unique code field.
func (r *Users) FindByCode(ctx context.Context, code string) (domain.UserRecord, error) {
	var rec domain.UserRecord
	err := r.col.FindOne(ctx, bson.M{"code": code}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("find user by code: %w", err)
	}
	return rec, nil
}

// AddPoint credits one referral point. $inc is a server-side atomic counter,
// so concurrent redemptions against the same referrer never lose a credit.
func (r *Users) AddPoint(ctx context.Context, id string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"points": int64(1)}},
	)
	if err != nil {
		return fmt.Errorf("add point to %s: %w", id, err)
	}
	return nil
}

// MarkCodeUsed flips the one-per-lifetime redemption flag. Never reset.
func (r *Users) MarkCodeUsed(ctx context.Context, id string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"codeUsed": true}},
	)
	if err != nil {
		return fmt.Errorf("mark code used for %s: %w", id, err)
	}
	return nil
}

func newReferralCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate referral code: %w", err)
	}
	return hex.EncodeToString(b), nil
}
