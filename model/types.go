package model

import (
	"encoding/json"
	"time"
)

// TypeUnknown is the sentinel document type for files without an extension.
const TypeUnknown = "unknown"

// Validation entry kinds. Exactly one success kind exists; the two failure
// kinds distinguish a rejected backend call from an unexpected internal error.
const (
	ValidationAssetIssue      = "asset_issue"
	ValidationAssetIssueError = "asset_issue_error"
	ValidationUnexpectedError = "unexpected_error"
)

// RoleAddresses holds the configurable role assignments of an issued asset.
type RoleAddresses struct {
	Creator  string `json:"creator"`
	Manager  string `json:"manager,omitempty"`
	Reserve  string `json:"reserve,omitempty"`
	Freeze   string `json:"freeze,omitempty"`
	Clawback string `json:"clawback,omitempty"`
}

// ValidationEntry records one attempt to anchor a document's commitment on
// the ledger. Type discriminates success from failure; failure entries carry
// only Network, Error and Timestamp.
type ValidationEntry struct {
	Network   string `json:"network"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`

	AssetID   uint64         `json:"asset_id,omitempty"`
	UnitName  string         `json:"unit_name,omitempty"`
	AssetName string         `json:"asset_name,omitempty"`
	Addresses *RoleAddresses `json:"addresses,omitempty"`

	ConfirmedRound uint64 `json:"confirmed_round,omitempty"`
	Fee            uint64 `json:"fee,omitempty"`
	FirstValid     uint64 `json:"first_valid,omitempty"`
	LastValid      uint64 `json:"last_valid,omitempty"`
	GenesisID      string `json:"genesis_id,omitempty"`
	GenesisHashB64 string `json:"genesis_hash_b64,omitempty"`

	CommitmentHashHex string `json:"commitment_sha256_hex,omitempty"`
	CommitmentHashB64 string `json:"commitment_sha256_b64,omitempty"`
	CommitmentLen     int    `json:"commitment_len,omitempty"`
	CommitmentCID     string `json:"commitment_cid,omitempty"`
	CommitmentFile    string `json:"commitment_file,omitempty"`
	CommitmentURL     string `json:"commitment_url,omitempty"`
	ContentURL        string `json:"content_download_url,omitempty"`
	Note              string `json:"note,omitempty"`

	Raw   json.RawMessage `json:"raw,omitempty"`
	Error string          `json:"error,omitempty"`
}

// MetadataRecord is the descriptor persisted alongside every stored document.
//
// Extras holds caller-supplied metadata; it is flattened into the top-level
// JSON object on serialization, and the computed fields always win on key
// collision. Validations is append-only.
type MetadataRecord struct {
	Fingerprint string `json:"fingerprint"`
	ContentCID  string `json:"content_cid"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	UploadTime  string `json:"upload_time"`
	Namespace   string `json:"namespace"`
	FolderPath  string `json:"folder_path"`
	FileName    string `json:"file_name"`

	Extras      map[string]any    `json:"-"`
	Validations []ValidationEntry `json:"validations"`
}

// reservedRecordKeys are the JSON keys owned by the computed fields. Extras
// entries under these keys are discarded on serialization.
var reservedRecordKeys = []string{
	"fingerprint", "content_cid", "size", "type", "upload_time",
	"namespace", "folder_path", "file_name", "validations",
}

// recordAlias avoids MarshalJSON recursion.
type recordAlias MetadataRecord

func (r MetadataRecord) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extras) == 0 {
		return base, nil
	}
	merged := make(map[string]json.RawMessage, len(r.Extras)+len(reservedRecordKeys))
	for k, v := range r.Extras {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = b
	}
	// Computed fields overwrite colliding extras.
	var computed map[string]json.RawMessage
	if err := json.Unmarshal(base, &computed); err != nil {
		return nil, err
	}
	for k, v := range computed {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (r *MetadataRecord) UnmarshalJSON(data []byte) error {
	var alias recordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range reservedRecordKeys {
		delete(all, k)
	}
	*r = MetadataRecord(alias)
	if len(all) > 0 {
		r.Extras = all
	}
	return nil
}

// RelPath returns the document's path relative to its namespace root, in
// slash form.
func (r *MetadataRecord) RelPath() string {
	if r.FolderPath == "" {
		return r.FileName
	}
	return r.FolderPath + "/" + r.FileName
}

// AppendValidation appends one entry, stamping the timestamp if unset.
func (r *MetadataRecord) AppendValidation(entry ValidationEntry) {
	if entry.Timestamp == "" {
		entry.Timestamp = NowUTC()
	}
	r.Validations = append(r.Validations, entry)
}

// NowUTC returns the current time as the UTC RFC 3339 string used in records
// and validation entries.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// IdentityState is the persisted bootstrap state of the signing identity.
// Each completed bootstrap step fills more of it, so a later run can resume
// without repeating finished steps.
type IdentityState struct {
	ServiceURL string `json:"service_url,omitempty"`
	Email      string `json:"email,omitempty"`
	Network    string `json:"network,omitempty"`

	AppName   string `json:"app_name,omitempty"`
	AppID     string `json:"app_id,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`

	Address string `json:"address,omitempty"`
	Label   string `json:"label,omitempty"`

	UpdatedAt string `json:"updated_at,omitempty"`
}

// FundingPolicy configures the balance-maintenance loop. Amounts are in the
// ledger's base unit.
type FundingPolicy struct {
	MinBalance   uint64
	TopupAmount  uint64
	MaxAttempts  int
	PollInterval time.Duration
}

// DefaultFundingPolicy mirrors the custodial service's recommended floor:
// keep at least 5 units of 10^6 base units, topping up 10 at a time.
func DefaultFundingPolicy() FundingPolicy {
	return FundingPolicy{
		MinBalance:   5_000_000,
		TopupAmount:  10_000_000,
		MaxAttempts:  6,
		PollInterval: 2 * time.Second,
	}
}
