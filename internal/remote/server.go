/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package remote

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	applog "goslides/internal/log"
	"goslides/internal/version"
)

// MaxDeckBytes bounds request bodies on publish.
const MaxDeckBytes = 8 << 20

// NewServer returns the HTTP API over repo:
//
//	GET  /healthz, /readyz, /version
//	POST /api/auth/token            -> {token, expires_at}
//	GET  /api/decks                 (auth)
//	GET  /api/decks/{id}            (auth) raw document JSON
//	PUT  /api/decks/{id}            (auth) body is the document JSON
//
// Bodies on PUT must be valid JSON; shape checking is left to the reader.
func NewServer(repo Repo, secret string) http.Handler {
	l := applog.WithComponent("remote").With(slog.String("op", "serve"))
	if secret == "" {
		secret = "dev-secret-change-me"
		l.Warn("auth secret not set; using insecure dev secret")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repo.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})

	mux.HandleFunc("POST /api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		// Optional JSON body: { "subject": "name", "ttl_seconds": 3600 }
		var req struct {
			Subject    string `json:"subject"`
			TTLSeconds int64  `json:"ttl_seconds"`
		}
		b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		_ = r.Body.Close()
		_ = json.Unmarshal(b, &req)
		if req.Subject == "" {
			req.Subject = "dev"
		}
		if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
			req.TTLSeconds = 3600
		}
		exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		tok, err := signToken(secret, req.Subject, exp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":      tok,
			"expires_at": exp.UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("GET /api/decks", withAuth(secret, func(w http.ResponseWriter, r *http.Request, _ string) {
		list, err := repo.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if list == nil {
			list = []Deck{}
		}
		writeJSON(w, http.StatusOK, list)
	}))

	mux.HandleFunc("GET /api/decks/{id}", withAuth(secret, func(w http.ResponseWriter, r *http.Request, _ string) {
		text, err := repo.Fetch(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, err)
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, text)
	}))

	mux.HandleFunc("PUT /api/decks/{id}", withAuth(secret, func(w http.ResponseWriter, r *http.Request, sub string) {
		b, err := io.ReadAll(io.LimitReader(r.Body, MaxDeckBytes+1))
		_ = r.Body.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if len(b) > MaxDeckBytes {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("deck exceeds %d bytes", MaxDeckBytes))
			return
		}
		if !json.Valid(b) {
			writeError(w, http.StatusBadRequest, errors.New("body is not valid JSON"))
			return
		}
		id := r.PathValue("id")
		v, err := repo.Publish(r.Context(), id, string(b))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		l.Info("deck published", slog.String("id", id), slog.String("sub", sub), slog.Int64("version", v))
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "version": v})
	}))
	return mux
}

// --- Helpers: auth and JSON ---

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

func signToken(secret, subject string, exp time.Time) (string, error) {
	b, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func verifyToken(secret, token string) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", errors.New("invalid token format")
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", errors.New("invalid token payload")
	}
	sigB, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", errors.New("invalid token signature")
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payloadB)
	if !hmac.Equal(h.Sum(nil), sigB) {
		return "", errors.New("bad signature")
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return "", errors.New("bad claims")
	}
	if claims.Exp < time.Now().Unix() {
		return "", errors.New("token expired")
	}
	if claims.Sub == "" {
		claims.Sub = "dev"
	}
	return claims.Sub, nil
}

func withAuth(secret string, next func(w http.ResponseWriter, r *http.Request, subject string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "bearer "
		if !strings.HasPrefix(strings.ToLower(auth), prefix) {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		sub, err := verifyToken(secret, strings.TrimSpace(auth[len(prefix):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		next(w, r, sub)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
