// Package policy implements the row-level access predicates shared by all
// coaching-core components. The storage engine here has no native row
// policies, so these predicates are the enforcement point: services call them
// before every row read or mutation, independently of any handler-level check.
//
// The predicates are pure functions over (Principal, row) so they are trivial
// to test and impossible to bypass accidentally by adding a new query path —
// new repo calls go through a service, and every service method opens with a
// policy check.
package policy

import "github.com/yamifit/yamifit-backend/internal/domain"

// CanReadAssignment reports whether p may read assignment row a.
// Readable by the client, the coach, or an admin.
func CanReadAssignment(p domain.Principal, a domain.Assignment) bool {
	return p.IsAdmin() || p.ID == a.ClientID || p.ID == a.CoachID
}

// CanWriteAssignment reports whether p may create or transition assignment
// rows for clientID. Only the client issues transitions; admins may repair.
func CanWriteAssignment(p domain.Principal, clientID string) bool {
	return p.IsAdmin() || p.ID == clientID
}

// CanAccessPair reports whether p may read or write chat messages addressed
// by pairKey. Members of the pair and admins qualify.
func CanAccessPair(p domain.Principal, pairKey string) bool {
	return p.IsAdmin() || domain.PairHas(pairKey, p.ID)
}

// CanSendAs reports whether p may author a chat message in pairKey. Unlike
// CanAccessPair this excludes admins: each member writes only as themselves.
func CanSendAs(p domain.Principal, pairKey string) bool {
	return domain.PairHas(pairKey, p.ID)
}

// CanAccessChatbotLog reports whether p may read or write the ephemeral
// chatbot history of userID. The log is exclusively owned by its user.
func CanAccessChatbotLog(p domain.Principal, userID string) bool {
	return p.ID == userID
}

// CanReadCoachProfile reports whether p may read a coach profile. Any
// authenticated principal qualifies.
func CanReadCoachProfile(p domain.Principal) bool {
	return p.ID != ""
}

// CanWriteCoachProfile reports whether p may mutate coach profile row c.
func CanWriteCoachProfile(p domain.Principal, c domain.CoachProfile) bool {
	return p.IsAdmin() || p.ID == c.CoachID
}
