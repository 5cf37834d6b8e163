package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/yourname/gatekeeper-bot/internal/domain"
)

// configDocID names the single configuration document.
const configDocID = "master"

type GuildConfigs struct{ col *mongo.Collection }

func NewGuildConfigs(database *mongo.Database) *GuildConfigs {
	return &GuildConfigs{col: database.Collection("configuration")}
}

// Fetch loads the configuration document. It is read once after login and
// held in memory for the process lifetime.
func (r *GuildConfigs) Fetch(ctx context.Context) (domain.GuildConfig, error) {
	var cfg domain.GuildConfig
	err := r.col.FindOne(ctx, bson.M{"_id": configDocID}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return cfg, errors.New("no configuration document")
	}
	if err != nil {
		return cfg, fmt.Errorf("fetch configuration: %w", err)
	}
	return cfg, nil
}
