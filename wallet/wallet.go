// Package wallet drives the identity bootstrap state machine against the
// custody service and keeps the bound address funded. Bootstrap is monotonic:
// Unauthenticated, Authenticated, AppBound, CredentialIssued, AddressBound,
// Funded — each transition is idempotent against previously persisted state.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"sigillo.dev/sigillo/custody"
	"sigillo.dev/sigillo/model"
)

// Service is the custody surface the wallet needs. *custody.Client satisfies
// it; tests substitute fakes.
type Service interface {
	Login(ctx context.Context, email, password string) error
	CreateApp(ctx context.Context, appName, network string) error
	AppKeys(ctx context.Context) ([]custody.AppKey, error)
	IssueCredential(ctx context.Context, secretKey string) error
	GenerateAddress(ctx context.Context, label string) (string, error)
	ListAddresses(ctx context.Context) ([]custody.Address, error)
	AccountInfo(ctx context.Context, address string) (uint64, error)
	Dispense(ctx context.Context, address string, amount uint64) error
	CreateAsset(ctx context.Context, req custody.AssetCreateRequest) (json.RawMessage, error)
}

// Manager owns one bootstrap run. Construct a fresh Manager per
// orchestration; it carries no process-wide shared state.
type Manager struct {
	svc      Service
	store    *StateStore
	logger   *slog.Logger
	email    string
	password string
	network  string
}

// NewManager builds a Manager for one network.
func NewManager(svc Service, store *StateStore, email, password, network string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		svc:      svc,
		store:    store,
		logger:   logger,
		email:    email,
		password: password,
		network:  network,
	}
}

func randomLabel(prefix string) string {
	return fmt.Sprintf("%s%09d", prefix, rand.Intn(1_000_000_000))
}

// Bootstrap drives the state machine to AddressBound, persisting after each
// completed transition so a later run resumes instead of repeating.
func (m *Manager) Bootstrap(ctx context.Context) (*model.IdentityState, error) {
	st, err := m.store.Load(m.network)
	if err != nil {
		return nil, err
	}

	if err := m.svc.Login(ctx, m.email, m.password); err != nil {
		return nil, err
	}
	st.Email = m.email
	st.Network = m.network

	if err := m.bindApp(ctx, st); err != nil {
		return nil, err
	}
	if err := m.svc.IssueCredential(ctx, st.SecretKey); err != nil {
		return nil, err
	}
	if err := m.store.Save(st); err != nil {
		return nil, err
	}

	if err := m.bindAddress(ctx, st); err != nil {
		return nil, err
	}
	if err := m.store.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

// bindApp reuses the persisted app registration when the custody service
// still lists it, otherwise registers a new app under a fresh label and
// refetches the listing once.
func (m *Manager) bindApp(ctx context.Context, st *model.IdentityState) error {
	keys, err := m.svc.AppKeys(ctx)
	if err != nil {
		return err
	}
	if k, ok := findApp(keys, st.AppName, m.network); ok {
		st.AppName, st.AppID, st.SecretKey = k.AppName, k.AppID, k.SecretKey
		return nil
	}

	name := randomLabel("app_")
	m.logger.Info("registering custody app", "app", name, "network", m.network)
	if err := m.svc.CreateApp(ctx, name, m.network); err != nil {
		return err
	}
	keys, err = m.svc.AppKeys(ctx)
	if err != nil {
		return err
	}
	k, ok := findApp(keys, name, m.network)
	if !ok {
		return model.Errorf(model.ErrAPI, "app %q not listed after registration", name)
	}
	st.AppName, st.AppID, st.SecretKey = k.AppName, k.AppID, k.SecretKey
	return nil
}

// findApp picks the key matching appName on network; with no appName it
// falls back to the first key on the network.
func findApp(keys []custody.AppKey, appName, network string) (custody.AppKey, bool) {
	for _, k := range keys {
		if k.Blockchain != network {
			continue
		}
		if appName == "" || k.AppName == appName {
			return k, true
		}
	}
	return custody.AppKey{}, false
}

// bindAddress reuses the persisted address when the custody service still
// lists it. Otherwise it asks for a new one; an empty generation response
// falls back to the last listed address.
func (m *Manager) bindAddress(ctx context.Context, st *model.IdentityState) error {
	listed, err := m.svc.ListAddresses(ctx)
	if err != nil {
		return err
	}
	if st.Address != "" {
		for _, a := range listed {
			if a.Address == st.Address {
				return nil
			}
		}
	}

	label := randomLabel("addr_")
	addr, err := m.svc.GenerateAddress(ctx, label)
	if err != nil {
		return err
	}
	if addr == "" {
		listed, err = m.svc.ListAddresses(ctx)
		if err != nil {
			return err
		}
		if len(listed) == 0 {
			return model.Errorf(model.ErrAPI, "address generation returned nothing and no addresses are listed")
		}
		last := listed[len(listed)-1]
		addr, label = last.Address, last.Label
	}
	st.Address, st.Label = addr, label
	return nil
}

// EnsureFunded runs the bounded funding loop: each attempt reads the
// balance, returns it once it meets policy.MinBalance, otherwise requests a
// topup and waits. When attempts exhaust the final balance is read and
// returned regardless — funding is best effort. Balance queries routinely
// fail for fresh, never-funded addresses, so a query error counts as a zero
// balance instead of stopping the loop.
func (m *Manager) EnsureFunded(ctx context.Context, st *model.IdentityState, policy model.FundingPolicy) (uint64, error) {
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		balance := m.balance(ctx, st.Address)
		if balance >= policy.MinBalance {
			return balance, nil
		}
		m.logger.Info("requesting topup",
			"address", st.Address, "balance", balance, "attempt", attempt+1)
		if err := m.svc.Dispense(ctx, st.Address, policy.TopupAmount); err != nil {
			return 0, err
		}
		if err := sleepCtx(ctx, policy.PollInterval); err != nil {
			return 0, err
		}
	}
	return m.balance(ctx, st.Address), nil
}

func (m *Manager) balance(ctx context.Context, address string) uint64 {
	balance, err := m.svc.AccountInfo(ctx, address)
	if err != nil {
		m.logger.Warn("balance query failed, treating as zero",
			"address", address, "error", err)
		return 0
	}
	return balance
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
