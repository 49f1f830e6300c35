package keygen

import (
	"crypto/rand"
	"math/big"
)

const upperAlphaNumeric = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referralCodeLength = 8

// ReferralCode generates a short shareable code. The charset drops the
// easily confused characters (0/O, 1/I).
func ReferralCode() string {
	code, err := randomString(referralCodeLength, upperAlphaNumeric)
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(err)
	}
	return code
}

// randomString generates a random string of given length from the given charset
func randomString(length int, charset string) (string, error) {
	result := make([]byte, length)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}

	return string(result), nil
}
