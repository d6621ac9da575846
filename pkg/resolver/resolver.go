// Package resolver finds the merchant profile behind a contact
// identifier and resolves the profile's durable merchant identity.
package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/singleflight"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/recordstore"
	"github.com/Ramsey-B/clover/pkg/registry"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Config identifies the profile collection and its lookup fields.
type Config struct {
	ProfileCollectionID string
	PhoneField          string
	EmailField          string
	NameField           string
	UUIDField           string
}

// Resolver locates merchant profiles in the record store and memoizes
// profile -> merchant info for the process lifetime. The memo is an
// injectable object with an explicit Reset, not a package-level
// singleton, so tests can run independent instances.
type Resolver struct {
	logger   ectologger.Logger
	store    recordstore.Store
	registry *registry.Registry
	config   Config

	group singleflight.Group
	mu    sync.RWMutex
	memo  map[string]*models.MerchantInfo
}

// New creates a resolver. The profile collection id is required.
func New(logger ectologger.Logger, store recordstore.Store, reg *registry.Registry, config Config) (*Resolver, error) {
	if config.ProfileCollectionID == "" {
		return nil, fmt.Errorf("resolver: profile collection id is required")
	}
	if config.PhoneField == "" {
		config.PhoneField = "Phone"
	}
	if config.EmailField == "" {
		config.EmailField = "Email"
	}
	if config.NameField == "" {
		config.NameField = "Name"
	}
	if config.UUIDField == "" {
		config.UUIDField = "Merchant UUID"
	}
	return &Resolver{
		logger:   logger,
		store:    store,
		registry: reg,
		config:   config,
		memo:     make(map[string]*models.MerchantInfo),
	}, nil
}

// lookupAttempt is one (format, filter strategy) pair of the phone
// resolution decision table.
type lookupAttempt struct {
	value string
	kind  recordstore.FilterKind
}

// phoneAttempts builds the ordered decision table: for each candidate
// format, a typed exact match first (cheap, precise), then the
// contains fallback (tolerates legacy records stored as free text).
func (r *Resolver) phoneAttempts(phone string) []lookupAttempt {
	variants := normalizers.PhoneVariants(phone)
	attempts := make([]lookupAttempt, 0, len(variants)*2)
	for _, v := range variants {
		attempts = append(attempts, lookupAttempt{value: v, kind: recordstore.FilterPhoneEquals})
		attempts = append(attempts, lookupAttempt{value: v, kind: recordstore.FilterTextContains})
	}
	return attempts
}

// FindProfileByPhone returns the matching profile id or "" when every
// format and filter strategy misses.
func (r *Resolver) FindProfileByPhone(ctx context.Context, phone string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.FindProfileByPhone")
	defer span.End()

	if normalizers.Phone(phone) == "" {
		return "", nil
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"phone": phone})

	for _, attempt := range r.phoneAttempts(phone) {
		page, err := r.store.QueryCollection(ctx, r.config.ProfileCollectionID, &recordstore.Filter{
			Field: r.config.PhoneField,
			Kind:  attempt.kind,
			Value: attempt.value,
		}, &recordstore.QueryOptions{PageSize: 1})
		if err != nil {
			return "", fmt.Errorf("resolver: query profiles by phone: %w", err)
		}
		if len(page.Results) > 0 {
			return page.Results[0].ID, nil
		}
	}

	log.Info("No profile found for phone")
	return "", nil
}

// FindProfileByEmail returns the matching profile id or "". Email
// fields are typed in the store, so there is no free-text fallback.
func (r *Resolver) FindProfileByEmail(ctx context.Context, email string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.FindProfileByEmail")
	defer span.End()

	normalized := normalizers.Email(email)
	if normalized == "" {
		return "", nil
	}

	page, err := r.store.QueryCollection(ctx, r.config.ProfileCollectionID, &recordstore.Filter{
		Field: r.config.EmailField,
		Kind:  recordstore.FilterEmailEquals,
		Value: normalized,
	}, &recordstore.QueryOptions{PageSize: 1})
	if err != nil {
		return "", fmt.Errorf("resolver: query profiles by email: %w", err)
	}
	if len(page.Results) > 0 {
		return page.Results[0].ID, nil
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"email": normalized}).Info("No profile found for email")
	return "", nil
}

// FindProfile dispatches on identifier type.
func (r *Resolver) FindProfile(ctx context.Context, identifier string, idType models.IdentifierType) (string, error) {
	if idType == models.IdentifierTypeEmail {
		return r.FindProfileByEmail(ctx, identifier)
	}
	return r.FindProfileByPhone(ctx, identifier)
}

// GetMerchantInfo resolves the merchant identity for a profile id. The
// result (including a not-found nil) is memoized for the process
// lifetime; concurrent callers for the same id share one fetch.
// Profile merchant metadata changes rarely relative to interaction
// volume, so the memo is never invalidated mid-process.
func (r *Resolver) GetMerchantInfo(ctx context.Context, profileID string) (*models.MerchantInfo, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.GetMerchantInfo")
	defer span.End()

	r.mu.RLock()
	info, ok := r.memo[profileID]
	r.mu.RUnlock()
	if ok {
		return info, nil
	}

	v, err, _ := r.group.Do(profileID, func() (any, error) {
		// A caller that lost the race to a completed flight lands here
		// after the memo is already populated.
		r.mu.RLock()
		info, ok := r.memo[profileID]
		r.mu.RUnlock()
		if ok {
			return info, nil
		}

		info, err := r.fetchMerchantInfo(ctx, profileID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.memo[profileID] = info
		r.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MerchantInfo), nil
}

func (r *Resolver) fetchMerchantInfo(ctx context.Context, profileID string) (*models.MerchantInfo, error) {
	log := r.logger.WithContext(ctx).WithFields(map[string]any{"profile_id": profileID})

	rec, err := r.store.GetRecord(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("resolver: get profile %s: %w", profileID, err)
	}
	if rec == nil {
		log.Warn("Profile record not found")
		return nil, nil
	}

	info := &models.MerchantInfo{Name: rec.StringProp(r.config.NameField)}
	if id := rec.StringProp(r.config.UUIDField); id != "" {
		info.UUID = &id
		return info, nil
	}

	if info.Name == "" || r.registry == nil {
		return info, nil
	}

	id, err := r.registry.LookupByName(ctx, info.Name)
	if err != nil {
		log.WithError(err).Warn("Canonical registry lookup failed")
		return info, nil
	}
	if id == "" {
		return info, nil
	}

	info.UUID = &id
	if err := r.store.UpdateRecordProperties(ctx, profileID, map[string]any{
		r.config.UUIDField: id,
	}); err != nil {
		log.WithError(err).Warn("Failed to persist resolved merchant UUID onto profile")
	}
	return info, nil
}

// Reset clears the memo. For tests and fresh-deployment tooling.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo = make(map[string]*models.MerchantInfo)
}
