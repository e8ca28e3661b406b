package pkg

import "golang.org/x/crypto/bcrypt"

// SecretHashCost is the bcrypt cost of new hashes. Stored hashes carry their own cost,
// so raising it does not invalidate them.
const SecretHashCost = 12

// HashSecret returns the bcrypt hash of an operator secret, as stored in admin_secret_hash.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), SecretHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// SecretMatches reports whether secret hashes to hash. Empty inputs never match.
func SecretMatches(secret, hash string) bool {
	if secret == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
