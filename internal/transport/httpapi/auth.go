package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Christ139/battle-server/internal/store"
)

// bcryptCost matches the teacher's auth.go cost factor exactly (SPEC_FULL.md
// §2). loginRateWindow/maxLoginAttempts match the teacher's checkRate
// constants exactly — the admin login endpoint guards a single shared
// credential protecting battle/start and battle/stop, so it gets the same
// per-IP brute-force throttle the teacher applies to its own login.
const (
	bcryptCost       = 12
	jwtExpiry        = 24 * time.Hour
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

// adminAuth issues and validates bearer tokens for the admin-only routes,
// grounded on the teacher's Auth (auth.go): a bcrypt-hashed secret checked
// at login, a store-persisted HMAC secret signing short-lived JWTs, and a
// per-IP rate limiter on login attempts.
type adminAuth struct {
	passwordHash []byte
	jwtSecret    []byte

	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// newAdminAuth hashes adminPassword once at startup and loads (or creates
// and persists) the JWT signing secret via st, mirroring
// auth.go's loadOrCreateSecret.
func newAdminAuth(adminPassword string, st *store.Store) (*adminAuth, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &adminAuth{
		passwordHash: hash,
		jwtSecret:    loadOrCreateSecret(st),
		rateMap:      make(map[string]*rateEntry),
	}, nil
}

// checkRate reports whether ip is still under the login attempt ceiling for
// the current window, same shape as the teacher's Auth.checkRate.
func (a *adminAuth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}

func loadOrCreateSecret(st *store.Store) []byte {
	if st != nil {
		if h := st.GetSetting("jwt_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if st != nil {
		if err := st.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
			log.Printf("httpapi: could not persist JWT secret: %v", err)
		}
	}
	return secret
}

// Login compares password against the admin password hash and issues a
// bearer token on success. ip gates a per-address rate limit so the single
// shared admin credential cannot be brute-forced.
func (a *adminAuth) Login(password, ip string) (string, error) {
	if !a.checkRate(ip) {
		return "", fmt.Errorf("too many login attempts, try again later")
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", fmt.Errorf("invalid admin password")
	}
	claims := jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(jwtExpiry).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// Validate reports whether tokenStr is a currently-valid admin bearer
// token.
func (a *adminAuth) Validate(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
