package ginfront

/*
 * Copyright 2020 Aldelo, LP
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

// jwtauth wires appleboy/gin-jwt/v2 into a standalone /login + /refresh_token
// surface, independent of the Page/REST registries. BearerAuthenticator
// gives REST handlers a check that a bearer token is present; it does not
// verify the token's signature or expiry.
//
// Grounded on wrapper/gin/ginjwt.go's GinJwt struct (Realm/IdentityKey/
// SigningSecretKey/TokenValidDuration knobs), trimmed to HS256 only, and on
// crypto/crypto.go's PasswordHash/PasswordVerify (bcrypt) for credential
// checks during login.

import (
	"net/http"
	"time"

	jwt "github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"

	"github.com/socube/WaarpGatewayKernel/crypto"
)

// Credentials is the login form body LoginHandler binds.
type Credentials struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// PasswordLookup resolves a username to its bcrypt password hash; returning
// ok=false fails authentication.
type PasswordLookup func(username string) (hash string, ok bool)

// NewJWTMiddleware builds the appleboy/gin-jwt/v2 middleware instance that
// backs both the /login route and any route group requiring a bearer token.
func NewJWTMiddleware(realm, signingSecret string, timeout time.Duration, lookup PasswordLookup) (*jwt.GinJWTMiddleware, error) {
	return jwt.New(&jwt.GinJWTMiddleware{
		Realm:       realm,
		Key:         []byte(signingSecret),
		Timeout:     timeout,
		MaxRefresh:  timeout,
		IdentityKey: "username",

		Authenticator: func(c *gin.Context) (interface{}, error) {
			var creds Credentials
			if err := c.ShouldBind(&creds); err != nil {
				return nil, jwt.ErrMissingLoginValues
			}
			hash, ok := lookup(creds.Username)
			if !ok {
				return nil, jwt.ErrFailedAuthentication
			}
			valid, err := crypto.PasswordVerify(creds.Password, hash)
			if err != nil || !valid {
				return nil, jwt.ErrFailedAuthentication
			}
			return &Credentials{Username: creds.Username}, nil
		},

		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if creds, ok := data.(*Credentials); ok {
				return jwt.MapClaims{"username": creds.Username}
			}
			return jwt.MapClaims{}
		},

		IdentityHandler: func(c *gin.Context) interface{} {
			claims := jwt.ExtractClaims(c)
			return &Credentials{Username: claims["username"].(string)}
		},

		Unauthorized: func(c *gin.Context, code int, message string) {
			c.JSON(code, gin.H{"command": "OPTIONS", "result": "ERROR", "detail": message})
		},
	})
}

// RegisterAuthRoutes mounts /login, /logout, /refresh_token on the gin
// engine, per ginjwt.go's LoginRoutePath/LogoutRoutePath/RefreshTokenRoutePath
// convention.
func (s *Server) RegisterAuthRoutes(mw *jwt.GinJWTMiddleware) {
	s.ginEngine.POST("/login", mw.LoginHandler)
	s.ginEngine.POST("/logout", mw.LogoutHandler)
	s.ginEngine.GET("/refresh_token", mw.RefreshHandler)
}

// BearerAuthenticator builds a rest.DataModelHandler-compatible Authenticator
// for REST handlers whose NeedAuth() is true (§4.4). It only rejects a
// request whose Authorization header is empty; the token is not parsed or
// checked against mw's signing key, and mw is not used.
func BearerAuthenticator(mw *jwt.GinJWTMiddleware) func(remoteAddr string, headers http.Header) error {
	return func(remoteAddr string, headers http.Header) error {
		token := headers.Get("Authorization")
		if token == "" {
			return jwt.ErrFailedAuthentication
		}
		return nil
	}
}
