// Package notary sequences a notarization: commitment build, wallet
// bootstrap and funding, asset issuance on the custody service, and the
// append of one validation entry recording the outcome.
package notary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sigillo.dev/sigillo/commitment"
	"sigillo.dev/sigillo/custody"
	"sigillo.dev/sigillo/docstore"
	"sigillo.dev/sigillo/hashutil"
	"sigillo.dev/sigillo/model"
	"sigillo.dev/sigillo/wallet"
)

// Config wires an Orchestrator.
type Config struct {
	Store   *docstore.Store
	Builder *commitment.Builder
	// NewService constructs a fresh custody client per run: no cross-call
	// shared session state.
	NewService func() (wallet.Service, error)
	States     *wallet.StateStore

	Email    string
	Password string
	// Network is the single enabled ledger network.
	Network string
	Funding model.FundingPolicy
	Logger  *slog.Logger
}

// Orchestrator runs notarizations. Safe for concurrent use; each run builds
// its own wallet manager and custody client.
type Orchestrator struct {
	cfg Config
}

// New validates config and builds an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil || cfg.Builder == nil || cfg.NewService == nil || cfg.States == nil {
		return nil, fmt.Errorf("notary: Store, Builder, NewService and States are required")
	}
	if cfg.Network == "" {
		cfg.Network = "algo"
	}
	cfg.Network = strings.ToLower(cfg.Network)
	if cfg.Funding == (model.FundingPolicy{}) {
		cfg.Funding = model.DefaultFundingPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg}, nil
}

// CheckNetworks rejects any requested network other than the single enabled
// one. Runs before any side effect, so a bad request never touches the
// ledger or the store.
func (o *Orchestrator) CheckNetworks(networks []string) error {
	if len(networks) == 0 {
		return model.Errorf(model.ErrInvalidInput, "no networks requested")
	}
	for _, n := range networks {
		if !strings.EqualFold(n, o.cfg.Network) {
			return model.Errorf(model.ErrUnimplemented, "network %q is not supported", n)
		}
	}
	return nil
}

// Notarize anchors the document's fingerprint on the ledger and appends one
// validation entry recording the attempt. A failed attempt appends an error
// entry and returns the failure; the document and its prior metadata are
// never rolled back.
func (o *Orchestrator) Notarize(ctx context.Context, namespace, relPath string, networks []string) error {
	if err := o.CheckNetworks(networks); err != nil {
		return err
	}

	rec, err := o.cfg.Store.Record(namespace, relPath)
	if err != nil {
		return err
	}
	if rec.Fingerprint == "" {
		if rec, err = o.refingerprint(namespace, relPath, rec); err != nil {
			return err
		}
	}

	c, err := o.cfg.Builder.Build(rec)
	if err != nil {
		return err
	}
	// Persisted before the ledger call so verifiers can re-hash the exact
	// bytes that were committed, whatever the submission outcome.
	if err := o.cfg.Store.SetCommitment(namespace, relPath, c.Canonical); err != nil {
		return err
	}

	if err := o.submit(ctx, namespace, relPath, rec, c); err != nil {
		o.recordFailure(namespace, relPath, err)
		return err
	}
	return nil
}

// refingerprint recomputes a missing fingerprint from the stored bytes and
// persists the repaired record.
func (o *Orchestrator) refingerprint(namespace, relPath string, rec *model.MetadataRecord) (*model.MetadataRecord, error) {
	data, err := o.cfg.Store.Content(namespace, relPath)
	if err != nil {
		return nil, err
	}
	rec.Fingerprint = hashutil.Fingerprint(data)
	rec.ContentCID = hashutil.CIDv1RawSHA256String(data)
	rec.Size = int64(len(data))
	if err := o.cfg.Store.SetRecord(namespace, relPath, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (o *Orchestrator) submit(ctx context.Context, namespace, relPath string, rec *model.MetadataRecord, c *commitment.Commitment) error {
	svc, err := o.cfg.NewService()
	if err != nil {
		return err
	}
	mgr := wallet.NewManager(svc, o.cfg.States, o.cfg.Email, o.cfg.Password, o.cfg.Network, o.cfg.Logger)
	st, err := mgr.Bootstrap(ctx)
	if err != nil {
		return err
	}
	balance, err := mgr.EnsureFunded(ctx, st, o.cfg.Funding)
	if err != nil {
		return err
	}
	if balance < o.cfg.Funding.MinBalance {
		// Best effort: log and proceed, the backend rejects if it must.
		o.cfg.Logger.Warn("proceeding underfunded",
			"address", st.Address, "balance", balance, "min", o.cfg.Funding.MinBalance)
	}

	unitName := SanitizeUnitName("DOC" + strings.ToUpper(rec.Fingerprint[:6]))
	assetName := SanitizeAssetName(fileStem(rec.FileName))
	note := fmt.Sprintf("notarization %s/%s", namespace, rec.RelPath())

	raw, err := svc.CreateAsset(ctx, custody.AssetCreateRequest{
		SenderAddress:           st.Address,
		Total:                   1,
		Decimals:                0,
		StrictEmptyAddressCheck: true,
		UnitName:                unitName,
		AssetName:               assetName,
		Manager:                 st.Address,
		Reserve:                 st.Address,
		Freeze:                  st.Address,
		Clawback:                st.Address,
		MetadataURL:             c.CommitmentURL,
		Metadata:                string(c.Canonical),
		Note:                    note,
		Label:                   st.Label,
	})
	if err != nil {
		return err
	}

	assetID, err := ExtractAssetID(raw)
	if err != nil {
		return err
	}
	details := parseTxnDetails(raw)
	roles := &model.RoleAddresses{
		Creator:  st.Address,
		Manager:  orDefault(details.Manager, st.Address),
		Reserve:  orDefault(details.Reserve, st.Address),
		Freeze:   orDefault(details.Freeze, st.Address),
		Clawback: orDefault(details.Clawback, st.Address),
	}

	return o.cfg.Store.AppendValidation(namespace, relPath, model.ValidationEntry{
		Network:           o.cfg.Network,
		Type:              model.ValidationAssetIssue,
		AssetID:           assetID,
		UnitName:          unitName,
		AssetName:         assetName,
		Addresses:         roles,
		ConfirmedRound:    details.ConfirmedRound,
		Fee:               details.Fee,
		FirstValid:        details.FirstValid,
		LastValid:         details.LastValid,
		GenesisID:         details.GenesisID,
		GenesisHashB64:    details.GenesisHashB64,
		CommitmentHashHex: c.HashHex,
		CommitmentHashB64: c.HashB64,
		CommitmentLen:     c.Len,
		CommitmentCID:     c.CID,
		CommitmentFile:    rec.FileName,
		CommitmentURL:     c.CommitmentURL,
		ContentURL:        c.ContentURL,
		Note:              note,
		Raw:               raw,
	})
}

// recordFailure appends an error validation entry. Kind depends on where the
// failure came from: custody-surface failures record an issuance error,
// anything else an unexpected error.
func (o *Orchestrator) recordFailure(namespace, relPath string, cause error) {
	kind := model.ValidationUnexpectedError
	switch model.CodeOf(cause) {
	case model.ErrAuthFailed, model.ErrAPI, model.ErrExtraction:
		kind = model.ValidationAssetIssueError
	}
	entry := model.ValidationEntry{
		Network: o.cfg.Network,
		Type:    kind,
		Error:   cause.Error(),
	}
	if err := o.cfg.Store.AppendValidation(namespace, relPath, entry); err != nil {
		o.cfg.Logger.Error("recording notarization failure failed",
			"namespace", namespace, "path", relPath, "error", err)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
