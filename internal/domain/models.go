package domain

import "time"

// SuspectAge is the account-age threshold below which a freshly created
// record is flagged as suspect. Computed once at creation, immutable after.
const SuspectAge = 30 * 24 * time.Hour

// Member is what the platform adapter knows about a user at event time.
type Member struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// UserRecord is the per-member referral/verification document.
// One document per member, keyed by the stable platform id.
type UserRecord struct {
	ID             string    `bson:"_id"`
	OG             bool      `bson:"OG"`
	Code           string    `bson:"code"`
	AccountCreated time.Time `bson:"accountCreated"`
	WalletAddress  string    `bson:"walletAddress"`
	Points         int64     `bson:"points"`
	Suspect        bool      `bson:"suspect"`
	CodeUsed       bool      `bson:"codeUsed"`
}

// IsSuspect reports whether an account created at the given time should be
// flagged at record creation.
func IsSuspect(accountCreated, now time.Time) bool {
	return now.Sub(accountCreated) < SuspectAge
}

// GuildConfig is the single read-only configuration document, fetched once
// after login and held for the process lifetime.
type GuildConfig struct {
	ProjectName       string `bson:"projectName"`
	TwitterHandle     string `bson:"twitterHandle"`
	TwitterLink       string `bson:"twitterLink"`
	Logo              string `bson:"logo"`
	Banner            string `bson:"banner"`
	VerifiedRole      string `bson:"verifiedRole"`
	CommandsChannelID string `bson:"commandsChannelID"`
}
