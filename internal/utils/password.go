package utils

// Password handling for profile credentials.  Only the bcrypt hash is
// ever stored (profiles.password_hash); the cost comes from BCRYPT_COST
// so test environments can hash cheaply while production stays slow.

import "golang.org/x/crypto/bcrypt"

// HashPassword derives the hash persisted for a profile's password.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored hash.  The
// comparison is constant time; login answers a failed match with the
// same "invalid credentials" body as an unknown email so the two cases
// are indistinguishable to a caller.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
