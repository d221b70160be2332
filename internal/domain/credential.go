package domain

import "time"

// CredentialRecord is the stored OAuth token pair for the connected account.
type CredentialRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Scope        string    `json:"scope"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// ExpiresWithin reports whether the access token expires before now+skew.
func (r CredentialRecord) ExpiresWithin(now time.Time, skew time.Duration) bool {
	if r.Expiry.IsZero() {
		return false
	}
	return !now.Add(skew).Before(r.Expiry)
}

// Merge returns refreshed with blank fields filled from r. The refresh token
// in particular is never dropped.
func (r CredentialRecord) Merge(refreshed CredentialRecord) CredentialRecord {
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = r.RefreshToken
	}
	if refreshed.Scope == "" {
		refreshed.Scope = r.Scope
	}
	if refreshed.TokenType == "" {
		refreshed.TokenType = r.TokenType
	}
	return refreshed
}

// Session is a live authorization handed to upstream adapters.
type Session struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
}

func (r CredentialRecord) Session() Session {
	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return Session{
		AccessToken: r.AccessToken,
		TokenType:   tokenType,
		Expiry:      r.Expiry,
	}
}
