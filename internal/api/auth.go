package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mvidaller/facility-core/internal/audit"
	"github.com/mvidaller/facility-core/internal/auth"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// authenticateRequest is the request body for POST /authenticate.
type authenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the sanitized user shape returned with a token.
type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	AccessLevel int    `json:"access_level"`
	Company     string `json:"company"`
}

// authenticateResponse is the response body for POST /authenticate.
type authenticateResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// invitationResponse is the sanitized invitation returned from signup.
// The token itself is never echoed back.
type invitationResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	AccessLevel int    `json:"access_level"`
}

// handleSignup looks up a pending invitation by its opaque token.
//
// A missing invitation yields 401 with guidance; account finalization
// itself happens in the out-of-band provisioning step, so the invitation
// is not consumed here.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	guest, err := s.guests.GetByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrGuestNotFound) {
			writeUnauthorized(w, "Invalid invitation. Please ask your administrator to send your invitation again")
			return
		}
		s.logger.Error("invitation lookup failed", "error", err)
		writeInternalError(w, "failed to look up invitation")
		return
	}

	writeJSON(w, http.StatusOK, invitationResponse{
		ID:          guest.ID,
		Email:       guest.Email,
		Company:     guest.Company,
		AccessLevel: guest.AccessLevel,
	})
}

// handleAuthenticate verifies email+password and issues a bearer token.
//
// Unknown email and wrong password both return the same 401 message so
// the response doesn't reveal which accounts exist.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "Authentication failed. Wrong user or password.")
			return
		}
		s.logger.Error("user lookup failed", "error", err)
		writeInternalError(w, "failed to look up user")
		return
	}

	if !s.verifier.Verify(req.Password, user.PasswordHash) {
		writeUnauthorized(w, "Authentication failed. Wrong user or password.")
		return
	}

	token, err := auth.GenerateToken(user, s.secCfg.Secret, s.secCfg.TokenTTL)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	name := user.Name
	if name == "" {
		name = "User"
	}

	s.recordAudit(r.Context(), &audit.AuditLog{
		Action:     "login",
		EntityType: "user",
		EntityID:   user.ID,
		UserID:     user.ID,
	})

	writeJSON(w, http.StatusOK, authenticateResponse{
		Token: token,
		User: userResponse{
			ID:          user.ID,
			Email:       user.Email,
			Name:        name,
			Surname:     user.Surname,
			AccessLevel: user.AccessLevel,
			Company:     user.Company,
		},
	})
}

// recordAudit writes an audit entry best-effort. Audit failures are
// logged, never surfaced to the caller.
func (s *Server) recordAudit(ctx context.Context, entry *audit.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", "action", entry.Action, "error", err)
	}
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL. The store is owned
// by the Server rather than shared package state, so parallel servers in
// tests don't see each other's tickets.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	userID    string
	company   string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the bearer token in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "No token provided")
		return
	}

	ticket := generateTicket()

	s.tickets.mu.Lock()
	s.tickets.tickets[ticket] = ticketEntry{
		userID:    claims.Subject,
		company:   claims.Company,
		expiresAt: time.Now().Add(ticketTTL),
	}
	s.tickets.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// validateTicket checks if a ticket is valid and consumes it (single-use).
func (s *Server) validateTicket(ticket string) (ticketEntry, bool) {
	s.tickets.mu.Lock()
	defer s.tickets.mu.Unlock()

	entry, ok := s.tickets.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}

	// Remove ticket (single-use)
	delete(s.tickets.tickets, ticket)

	if time.Now().After(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanExpiredTickets removes expired tickets from the store.
func (s *Server) cleanExpiredTickets() {
	s.tickets.mu.Lock()
	defer s.tickets.mu.Unlock()

	now := time.Now()
	for ticket, entry := range s.tickets.tickets {
		if now.After(entry.expiresAt) {
			delete(s.tickets.tickets, ticket)
		}
	}
}

// cleanTicketsLoop runs cleanExpiredTickets periodically until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanExpiredTickets()
		}
	}
}
