package catalog

import (
	"context"
	"errors"
)

// ErrCredentialRetired tells the search stage to stop using this resolver's
// credential for the remainder of the run.
var ErrCredentialRetired = errors.New("catalog: credential retired")

// Normalizer maps an operator-supplied manufacturer name to the vendor's
// canonical spelling. Synonym tables are a collaborator's concern; Identity
// is the default.
type Normalizer func(manufacturer string) string

// Identity returns the name unchanged.
func Identity(manufacturer string) string { return manufacturer }

// Resolver resolves part records against the catalog with one credential.
// It owns the auth-refresh discipline: a 401 triggers one in-place refresh
// and a transparent retry; a second failure retires the credential.
type Resolver struct {
	session   *Session
	normalize Normalizer
}

// NewResolver builds a resolver around its own session for cred.
func NewResolver(c *Client, cred Credential, n Normalizer) *Resolver {
	if n == nil {
		n = Identity
	}
	return &Resolver{session: c.NewSession(cred), normalize: n}
}

// ID returns the owning credential's identifier.
func (r *Resolver) ID() string { return r.session.CredentialID() }

// Resolve searches for one part and classifies the result. The returned
// error is nil except when the credential must be retired; the outcome is
// always valid either way.
func (r *Resolver) Resolve(ctx context.Context, manufacturer, mpn string) (SearchOutcome, error) {
	mfr := r.normalize(manufacturer)

	resp, err := r.session.Search(ctx, mpn)
	if errors.Is(err, ErrUnauthorized) {
		// One transparent refresh + retry, not counted against any budget.
		if authErr := r.session.Authenticate(ctx); authErr != nil {
			out := SearchOutcome{Kind: SearchErrored, Detail: "authentication failed"}
			return out, ErrCredentialRetired
		}
		resp, err = r.session.Search(ctx, mpn)
		if errors.Is(err, ErrUnauthorized) {
			out := SearchOutcome{Kind: SearchErrored, Detail: "authentication failed"}
			return out, ErrCredentialRetired
		}
	}
	return ClassifySearch(mpn, mfr, resp, err), nil
}
