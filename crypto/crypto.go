// Package crypto holds the one credential-hashing concern the gateway
// kernel actually exercises: bcrypt password hash/verify, used by
// ginfront's jwtauth Authenticator. The teacher's AES/DES/RSA/HMAC/scrypt
// surface has no caller anywhere in this tree and was dropped rather than
// carried as unreachable weight (see DESIGN.md).
package crypto

/*
 * Copyright 2020-2026 Aldelo, LP
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordHash uses BCrypt to hash the given password and return a
// corresponding hash, suggested cost = 13 (~440ms); if cost is left as 0,
// the default of 13 is assumed.
func PasswordHash(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = 13
	} else if cost < 12 {
		cost = 12
	} else if cost > 31 {
		cost = 31
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// PasswordVerify uses BCrypt to verify the input password against a prior
// hash to see if they match.
func PasswordVerify(password string, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		return false, err
	}

	return true, nil
}
