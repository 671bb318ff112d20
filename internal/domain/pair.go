package domain

import "strings"

// PairKey returns the canonical key for the unordered pair {clientID, coachID}.
// The two ids are joined with ':' in lexicographic order so both members of a
// conversation derive the same key regardless of argument order.
func PairKey(clientID, coachID string) string {
	if clientID <= coachID {
		return clientID + ":" + coachID
	}
	return coachID + ":" + clientID
}

// PairMembers splits a canonical pair key back into its two member ids.
// The second return is false when the key is not in canonical form.
func PairMembers(key string) (a, b string, ok bool) {
	i := strings.IndexByte(key, ':')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// PairHas reports whether id is one of the two members of the pair key.
func PairHas(key, id string) bool {
	a, b, ok := PairMembers(key)
	return ok && (a == id || b == id)
}
