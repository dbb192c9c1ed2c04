package notary

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"sigillo.dev/sigillo/commitment"
	"sigillo.dev/sigillo/custody"
	"sigillo.dev/sigillo/docstore"
	"sigillo.dev/sigillo/model"
	"sigillo.dev/sigillo/wallet"
)

// fakeCustody scripts the full custody surface for orchestrator tests.
type fakeCustody struct {
	assetResponse json.RawMessage
	assetErr      error
	createCalls   int
	lastRequest   custody.AssetCreateRequest
}

func (f *fakeCustody) Login(ctx context.Context, email, password string) error { return nil }
func (f *fakeCustody) CreateApp(ctx context.Context, appName, network string) error {
	return nil
}
func (f *fakeCustody) AppKeys(ctx context.Context) ([]custody.AppKey, error) {
	return []custody.AppKey{{SecretKey: "sk", AppName: "app_1", Blockchain: "algo"}}, nil
}
func (f *fakeCustody) IssueCredential(ctx context.Context, secretKey string) error { return nil }
func (f *fakeCustody) GenerateAddress(ctx context.Context, label string) (string, error) {
	return "CREATORADDR", nil
}
func (f *fakeCustody) ListAddresses(ctx context.Context) ([]custody.Address, error) {
	return nil, nil
}
func (f *fakeCustody) AccountInfo(ctx context.Context, address string) (uint64, error) {
	return 10_000_000, nil
}
func (f *fakeCustody) Dispense(ctx context.Context, address string, amount uint64) error {
	return nil
}
func (f *fakeCustody) CreateAsset(ctx context.Context, req custody.AssetCreateRequest) (json.RawMessage, error) {
	f.createCalls++
	f.lastRequest = req
	return f.assetResponse, f.assetErr
}

func newTestOrchestrator(t *testing.T, fake *fakeCustody) (*Orchestrator, *docstore.Store) {
	t.Helper()
	store, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	states, err := wallet.NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	orch, err := New(Config{
		Store:      store,
		Builder:    &commitment.Builder{PublicBaseURL: "https://sigillo.example"},
		NewService: func() (wallet.Service, error) { return fake, nil },
		States:     states,
		Email:      "ops@example.com",
		Password:   "pw",
		Network:    "algo",
		Funding:    model.FundingPolicy{MinBalance: 100, TopupAmount: 50, MaxAttempts: 3},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return orch, store
}

func TestUnknownNetworkRejectedBeforeAnySideEffect(t *testing.T) {
	fake := &fakeCustody{}
	orch, store := newTestOrchestrator(t, fake)
	if _, err := store.Put("ns1", "", "a.txt", []byte("content"), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	err := orch.Notarize(context.Background(), "ns1", "a.txt", []string{"algo", "other"})
	if !model.IsCode(err, model.ErrUnimplemented) {
		t.Fatalf("error = %v, want UNIMPLEMENTED", err)
	}
	if fake.createCalls != 0 {
		t.Fatalf("ledger submission attempted despite rejected network")
	}
	if _, err := store.Commitment("ns1", "a.txt"); !model.IsNotFound(err) {
		t.Fatalf("commitment persisted despite rejected network: %v", err)
	}
	rec, err := store.Record("ns1", "a.txt")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(rec.Validations) != 0 {
		t.Fatalf("validations appended despite rejected network")
	}
}

func TestCheckNetworksIgnoresCase(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeCustody{})
	for _, networks := range [][]string{{"algo"}, {"ALGO"}, {"Algo"}} {
		if err := orch.CheckNetworks(networks); err != nil {
			t.Fatalf("CheckNetworks(%v) = %v, want nil", networks, err)
		}
	}
	if err := orch.CheckNetworks([]string{"eth"}); !model.IsCode(err, model.ErrUnimplemented) {
		t.Fatalf("CheckNetworks(eth) = %v, want UNIMPLEMENTED", err)
	}
	if err := orch.CheckNetworks(nil); !model.IsCode(err, model.ErrInvalidInput) {
		t.Fatalf("CheckNetworks(nil) = %v, want INVALID_INPUT", err)
	}
}

func TestNotarizeUppercaseNetwork(t *testing.T) {
	fake := &fakeCustody{assetResponse: json.RawMessage(`{"asset-index": 11}`)}
	orch, store := newTestOrchestrator(t, fake)
	if _, err := store.Put("ns1", "", "a.txt", []byte("content"), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := orch.Notarize(context.Background(), "ns1", "a.txt", []string{"ALGO"}); err != nil {
		t.Fatalf("Notarize with uppercase network: %v", err)
	}
	rec, _ := store.Record("ns1", "a.txt")
	if len(rec.Validations) != 1 || rec.Validations[0].AssetID != 11 {
		t.Fatalf("validations = %+v", rec.Validations)
	}
}

func TestNotarizeAgainAfterRename(t *testing.T) {
	fake := &fakeCustody{assetResponse: json.RawMessage(`{"asset-index": 5}`)}
	orch, store := newTestOrchestrator(t, fake)
	if _, err := store.Put("ns1", "", "a.txt", []byte("content"), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := orch.Notarize(context.Background(), "ns1", "a.txt", []string{"algo"}); err != nil {
		t.Fatalf("first Notarize: %v", err)
	}

	if err := store.Rename("ns1", "a.txt", "b.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := orch.Notarize(context.Background(), "ns1", "b.txt", []string{"algo"}); err != nil {
		t.Fatalf("Notarize after rename: %v", err)
	}

	rec, err := store.Record("ns1", "b.txt")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(rec.Validations) != 2 {
		t.Fatalf("validations = %d, want 2", len(rec.Validations))
	}
	// The artifact now names the new location.
	artifact, err := store.Commitment("ns1", "b.txt")
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	var p commitment.Payload
	if err := json.Unmarshal(artifact, &p); err != nil {
		t.Fatalf("artifact not canonical JSON: %v", err)
	}
	if p.Path != "b.txt" || p.File != "b.txt" {
		t.Fatalf("artifact location = %q/%q, want b.txt", p.Path, p.File)
	}
}

func TestNotarizeSuccessEntry(t *testing.T) {
	fake := &fakeCustody{assetResponse: json.RawMessage(`{
		"asset-index": 9876,
		"confirmed-round": 321,
		"txn": {"txn": {
			"fee": 1000, "fv": 300, "lv": 1300, "gen": "testnet-v1.0", "gh": "SGO1GKSzyE7IEPItTxCByw9x8FmnrCDe",
			"apar": {"m": "MGRADDR"}
		}}
	}`)}
	orch, store := newTestOrchestrator(t, fake)
	if _, err := store.Put("ns1", "docs", "contract.pdf", []byte("pdfbytes"), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := orch.Notarize(context.Background(), "ns1", "docs/contract.pdf", []string{"algo"}); err != nil {
		t.Fatalf("Notarize: %v", err)
	}

	rec, err := store.Record("ns1", "docs/contract.pdf")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(rec.Validations) != 1 {
		t.Fatalf("validations = %d, want 1", len(rec.Validations))
	}
	v := rec.Validations[0]
	if v.Type != model.ValidationAssetIssue || v.Network != "algo" {
		t.Fatalf("entry header = %+v", v)
	}
	if v.AssetID != 9876 || v.ConfirmedRound != 321 || v.Fee != 1000 {
		t.Fatalf("ledger fields = %+v", v)
	}
	if v.GenesisID != "testnet-v1.0" {
		t.Fatalf("genesis id = %q", v.GenesisID)
	}
	if v.Addresses == nil || v.Addresses.Creator != "CREATORADDR" || v.Addresses.Manager != "MGRADDR" {
		t.Fatalf("addresses = %+v", v.Addresses)
	}
	// Roles absent from the echo fall back to the creator.
	if v.Addresses.Reserve != "CREATORADDR" || v.Addresses.Clawback != "CREATORADDR" {
		t.Fatalf("role fallback = %+v", v.Addresses)
	}
	if v.Timestamp == "" {
		t.Fatalf("timestamp not stamped")
	}
	if v.CommitmentHashHex == "" || v.CommitmentURL == "" || v.ContentURL == "" {
		t.Fatalf("commitment fields = %+v", v)
	}
	if len(v.Raw) == 0 {
		t.Fatalf("raw response not recorded")
	}

	// The request carried the commitment as annotation fields.
	req := fake.lastRequest
	if req.Total != 1 || req.Decimals != 0 || !req.StrictEmptyAddressCheck {
		t.Fatalf("issuance params = %+v", req)
	}
	if req.UnitName != v.UnitName || len(req.UnitName) > 8 {
		t.Fatalf("unit name = %q", req.UnitName)
	}
	if req.AssetName != "contract" {
		t.Fatalf("asset name = %q", req.AssetName)
	}
	if req.MetadataURL != v.CommitmentURL {
		t.Fatalf("metadata url = %q", req.MetadataURL)
	}
	if req.Note != "notarization ns1/docs/contract.pdf" {
		t.Fatalf("note = %q", req.Note)
	}

	// The commitment artifact is the exact metadata annotation bytes.
	artifact, err := store.Commitment("ns1", "docs/contract.pdf")
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if string(artifact) != req.Metadata {
		t.Fatalf("artifact differs from issuance metadata")
	}
}

func TestNotarizeBackendFailureAppendsErrorEntry(t *testing.T) {
	fake := &fakeCustody{assetErr: model.Errorf(model.ErrAPI, "custody /algo/asset_create_txn returned 500")}
	orch, store := newTestOrchestrator(t, fake)
	if _, err := store.Put("ns1", "", "a.txt", []byte("content"), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	before, _ := store.Record("ns1", "a.txt")

	err := orch.Notarize(context.Background(), "ns1", "a.txt", []string{"algo"})
	if !model.IsCode(err, model.ErrAPI) {
		t.Fatalf("error = %v, want API_ERROR", err)
	}

	rec, err := store.Record("ns1", "a.txt")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(rec.Validations) != 1 {
		t.Fatalf("validations = %d, want 1", len(rec.Validations))
	}
	v := rec.Validations[0]
	if v.Type != model.ValidationAssetIssueError || v.Error == "" {
		t.Fatalf("entry = %+v", v)
	}
	if v.Timestamp == "" {
		t.Fatalf("timestamp not stamped")
	}
	if v.AssetID != 0 {
		t.Fatalf("failed entry carries an asset id: %+v", v)
	}
	// Prior metadata untouched.
	if rec.Fingerprint != before.Fingerprint || rec.UploadTime != before.UploadTime {
		t.Fatalf("metadata mutated by failed notarization")
	}
	content, _ := store.Content("ns1", "a.txt")
	if string(content) != "content" {
		t.Fatalf("content mutated by failed notarization")
	}
	// The commitment artifact still persists for the next attempt.
	if _, err := store.Commitment("ns1", "a.txt"); err != nil {
		t.Fatalf("commitment not persisted: %v", err)
	}
}

func TestNotarizeExtractionFailure(t *testing.T) {
	fake := &fakeCustody{assetResponse: json.RawMessage(`{"status":"ok"}`)}
	orch, store := newTestOrchestrator(t, fake)
	store.Put("ns1", "", "a.txt", []byte("content"), nil)

	err := orch.Notarize(context.Background(), "ns1", "a.txt", []string{"algo"})
	if !model.IsCode(err, model.ErrExtraction) {
		t.Fatalf("error = %v, want EXTRACTION_FAILED", err)
	}
	rec, _ := store.Record("ns1", "a.txt")
	if len(rec.Validations) != 1 || rec.Validations[0].Type != model.ValidationAssetIssueError {
		t.Fatalf("validations = %+v", rec.Validations)
	}
}

func TestNotarizeRepairsMissingFingerprint(t *testing.T) {
	fake := &fakeCustody{assetResponse: json.RawMessage(`{"asset-index": 1}`)}
	orch, store := newTestOrchestrator(t, fake)
	store.Put("ns1", "", "a.txt", []byte("content"), nil)

	rec, _ := store.Record("ns1", "a.txt")
	want := rec.Fingerprint
	rec.Fingerprint = ""
	if err := store.SetRecord("ns1", "a.txt", rec); err != nil {
		t.Fatalf("SetRecord: %v", err)
	}

	if err := orch.Notarize(context.Background(), "ns1", "a.txt", []string{"algo"}); err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	rec, _ = store.Record("ns1", "a.txt")
	if rec.Fingerprint != want {
		t.Fatalf("fingerprint = %q, want %q", rec.Fingerprint, want)
	}
}

func TestExtractAssetIDStrategies(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want uint64
		fail bool
	}{
		{"dashed key", `{"asset-index": 42}`, 42, false},
		{"underscore key", `{"asset_id": 43}`, 43, false},
		{"nested", `{"asset": {"index": 44}}`, 44, false},
		{"string value", `{"asset_id": "45"}`, 45, false},
		{"dashed wins over nested", `{"asset-index": 1, "asset": {"index": 2}}`, 1, false},
		{"nothing", `{"status":"ok"}`, 0, true},
		{"not an object", `[1,2]`, 0, true},
		{"negative", `{"asset-index": -1}`, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractAssetID(json.RawMessage(tc.raw))
			if tc.fail {
				if !model.IsCode(err, model.ErrExtraction) {
					t.Fatalf("error = %v, want EXTRACTION_FAILED", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractAssetID: %v", err)
			}
			if got != tc.want {
				t.Fatalf("id = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSanitizeUnitName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"doc84d898", "DOC84D89"},
		{"DOC-84/d8", "DOC_84_D"},
		{"with space", "WITH_SPA"},
		{"", ""},
		{"abc", "ABC"},
		{"a_b_c_d_e_f", "A_B_C_D_"},
	}
	for _, tc := range cases {
		if got := SanitizeUnitName(tc.in); got != tc.want {
			t.Errorf("SanitizeUnitName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeAssetName(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "x"
	}
	cases := []struct{ in, want string }{
		{"contract", "contract"},
		{"with space.pdf", "with space.pdf"},
		{"tab\there", "tabhere"},
		{long, long[:32]},
	}
	for _, tc := range cases {
		if got := SanitizeAssetName(tc.in); got != tc.want {
			t.Errorf("SanitizeAssetName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileStem(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a.txt", "a"},
		{"archive.tar.gz", "archive.tar"},
		{"noext", "noext"},
		{".hidden", ".hidden"},
	}
	for _, tc := range cases {
		if got := fileStem(tc.in); got != tc.want {
			t.Errorf("fileStem(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQueueRunsTasks(t *testing.T) {
	fake := &fakeCustody{assetResponse: json.RawMessage(`{"asset-index": 7}`)}
	orch, store := newTestOrchestrator(t, fake)
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("doc%d.txt", i)
		if _, err := store.Put("ns1", "", name, []byte(name), nil); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	q := NewQueue(orch, 8, nil)
	q.Start()
	for i := 0; i < 3; i++ {
		q.Enqueue(Task{Namespace: "ns1", RelPath: fmt.Sprintf("doc%d.txt", i), Networks: []string{"algo"}})
	}
	q.Stop()

	for i := 0; i < 3; i++ {
		rec, err := store.Record("ns1", fmt.Sprintf("doc%d.txt", i))
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if len(rec.Validations) != 1 || rec.Validations[0].AssetID != 7 {
			t.Fatalf("doc%d validations = %+v", i, rec.Validations)
		}
	}
}
