package auth

import "github.com/2beens/fitstreak/pkg"

// Admin guards operator endpoints with a shared secret stored as a bcrypt hash.
type Admin struct {
	SecretHash string
}

func (a Admin) Check(secret string) bool {
	return pkg.SecretMatches(secret, a.SecretHash)
}
