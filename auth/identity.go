package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// The subject prefixes used in catalog ACLs. An access-id, including its
// prefix, is matched against a group of the same name: group:access-id:<id>
// matches access-id:<id>.
const (
	aclPrefixUser   = "user:"
	aclPrefixEmail  = "email:"
	aclPrefixGroup  = "group:"
	aclPrefixOrg    = "org:"
	aclPrefixAccess = "access-id:"
)

// Group suffixes granting administrative rights over an org or a
// purchased resource.
const (
	orgAdminSuffix      = ":org-admin"
	resourceAdminSuffix = ":resource-admin"
)

// identityCache holds the fields derived from the current token's claims.
// All of them are invalidated together when a new token is issued.
type identityCache struct {
	payload         Claims
	namespace       string
	aclSubjects     []string
	aclSubjectSet   map[string]struct{}
	ownerSubjects   []string
	ownerSubjectSet map[string]struct{}
}

// Payload returns the claims of the current token, refreshing it first if
// needed. Custom claims have their tenant prefix stripped.
func (a *Auth) Payload(ctx context.Context) (Claims, error) {
	token, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.identity.payload == nil {
		claims, err := decodeClaims(token)
		if err != nil {
			return nil, err
		}
		claims.stripCustomClaims()
		a.identity.payload = claims
	}

	return a.identity.payload, nil
}

// Namespace returns the stable user identifier: the userid claim when
// present, else the SHA-1 digest of the sub claim (legacy accounts).
func (a *Auth) Namespace(ctx context.Context) (string, error) {
	payload, err := a.Payload(ctx)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.identity.namespace == "" {
		namespace := payload.UserID()
		if namespace == "" {
			sub := payload.Subject()
			if sub == "" {
				return "", fmt.Errorf("%w: token has neither userid nor sub claim", ErrInvalidToken)
			}
			sum := sha1.Sum([]byte(sub))
			namespace = hex.EncodeToString(sum[:])
		}
		a.identity.namespace = namespace
	}

	return a.identity.namespace, nil
}

// AllACLSubjects returns every ACL subject identifying this user (the user
// itself, the email, the org, the active groups), usable in ACL queries.
func (a *Auth) AllACLSubjects(ctx context.Context) ([]string, error) {
	namespace, err := a.Namespace(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := a.Payload(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.identity.aclSubjects == nil {
		subjects := []string{aclPrefixUser + namespace}

		if email := payload.Email(); email != "" {
			subjects = append(subjects, aclPrefixEmail+strings.ToLower(email))
		}
		if org := payload.Org(); org != "" {
			subjects = append(subjects, aclPrefixOrg+org)
		}
		for _, group := range activeGroups(payload) {
			subjects = append(subjects, aclPrefixGroup+group)
		}

		a.identity.aclSubjects = subjects
	}

	return a.identity.aclSubjects, nil
}

// AllACLSubjectSet is the set form of AllACLSubjects.
func (a *Auth) AllACLSubjectSet(ctx context.Context) (map[string]struct{}, error) {
	subjects, err := a.AllACLSubjects(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.identity.aclSubjectSet == nil {
		a.identity.aclSubjectSet = toSet(subjects)
	}

	return a.identity.aclSubjectSet, nil
}

// AllOwnerACLSubjects returns the ACL subjects usable in owner queries:
// the user itself plus the orgs and access-ids it administers.
func (a *Auth) AllOwnerACLSubjects(ctx context.Context) ([]string, error) {
	namespace, err := a.Namespace(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := a.Payload(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.identity.ownerSubjects == nil {
		subjects := []string{aclPrefixUser + namespace}

		for _, org := range adminValues(payload, orgAdminSuffix) {
			subjects = append(subjects, aclPrefixOrg+org)
		}
		for _, accessID := range adminValues(payload, resourceAdminSuffix) {
			subjects = append(subjects, aclPrefixAccess+accessID)
		}

		a.identity.ownerSubjects = subjects
	}

	return a.identity.ownerSubjects, nil
}

// AllOwnerACLSubjectSet is the set form of AllOwnerACLSubjects.
func (a *Auth) AllOwnerACLSubjectSet(ctx context.Context) (map[string]struct{}, error) {
	subjects, err := a.AllOwnerACLSubjects(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.identity.ownerSubjectSet == nil {
		a.identity.ownerSubjectSet = toSet(subjects)
	}

	return a.identity.ownerSubjectSet, nil
}

// activeGroups filters the groups claim to the groups currently valid for
// the user. A group containing a colon is org-scoped: its prefix must
// match the user's current org.
func activeGroups(payload Claims) []string {
	org := payload.Org()

	var active []string
	for _, group := range payload.Groups() {
		prefix, _, scoped := strings.Cut(group, ":")
		if !scoped || (org != "" && prefix == org) {
			active = append(active, group)
		}
	}
	return active
}

// adminValues returns the group names carrying the given admin suffix,
// with the suffix stripped and empty remainders dropped.
func adminValues(payload Claims, suffix string) []string {
	var values []string
	for _, group := range payload.Groups() {
		if value, ok := strings.CutSuffix(group, suffix); ok && value != "" {
			values = append(values, value)
		}
	}
	return values
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
