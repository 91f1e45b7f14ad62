// Package guardian holds the roster of school staff allowed to take
// moderation actions, with role-based permissions loaded from JSON.
package guardian

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Roster answers permission checks for guardian users. Authentication happens
// upstream in the portal; the roster only decides what an authenticated
// principal may do.
type Roster struct {
	mu         sync.RWMutex
	config     *Config
	configPath string

	// Quick lookup map built from config
	memberRoles map[string]*Role // user ID -> Role
}

// NewRoster creates a roster from the config file at path.
// If path is empty, the roster is in "disabled" mode where all permission
// checks return false.
func NewRoster(path string) (*Roster, error) {
	r := &Roster{
		configPath:  path,
		memberRoles: make(map[string]*Role),
	}

	if path == "" {
		log.Info().Msg("guardian: no roster path provided, moderation endpoints disabled")
		return r, nil
	}

	if err := r.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load guardian roster: %w", err)
	}

	return r, nil
}

// loadConfig reads and parses the roster file
func (r *Roster) loadConfig() error {
	data, err := os.ReadFile(r.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", r.configPath).Msg("guardian: roster file not found, moderation endpoints disabled")
			return nil
		}
		return fmt.Errorf("failed to read roster file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse roster file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid roster: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = &config
	r.rebuildLookupMap()

	log.Info().
		Int("roles", len(config.Roles)).
		Int("members", len(config.Members)).
		Str("path", r.configPath).
		Msg("guardian: roster loaded")

	return nil
}

// rebuildLookupMap rebuilds the quick lookup map from config
// Caller must hold the write lock
func (r *Roster) rebuildLookupMap() {
	r.memberRoles = make(map[string]*Role)

	if r.config == nil {
		return
	}

	for i := range r.config.Members {
		member := &r.config.Members[i]
		if role, ok := r.config.Roles[member.Role]; ok {
			r.memberRoles[member.UserID] = role
		}
	}
}

// Reload reloads the roster from disk
func (r *Roster) Reload() error {
	if r.configPath == "" {
		return nil
	}
	return r.loadConfig()
}

// IsEnabled returns true if the roster is configured and non-empty
func (r *Roster) IsEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config != nil && len(r.config.Members) > 0
}

// IsAdmin returns true if the given user has the admin role
func (r *Roster) IsAdmin(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.memberRoles[userID]
	if !ok {
		return false
	}
	return role.Name == RoleAdmin
}

// IsGuardian returns true if the given user has any guardian role
func (r *Roster) IsGuardian(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.memberRoles[userID]
	return ok
}

// HasPermission returns true if the given user has the specified permission
func (r *Roster) HasPermission(userID string, permission Permission) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.memberRoles[userID]
	if !ok {
		return false
	}
	return role.HasPermission(permission)
}

// GetRole returns the role for the given user, if any
func (r *Roster) GetRole(userID string) (*Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.memberRoles[userID]
	if !ok {
		return nil, false
	}
	// Return a copy to prevent external modification
	roleCopy := *role
	return &roleCopy, true
}

// ListMembers returns all configured roster members
func (r *Roster) ListMembers() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.config == nil {
		return nil
	}

	// Return a copy to prevent external modification
	result := make([]Member, len(r.config.Members))
	copy(result, r.config.Members)
	return result
}
