package notary

import (
	"encoding/json"
	"strconv"

	"sigillo.dev/sigillo/model"
)

// assetIDExtractor is one strategy for pulling the issued asset id out of a
// backend response. Strategies are tried in order; the first match wins.
type assetIDExtractor struct {
	name    string
	extract func(map[string]any) (uint64, bool)
}

var assetIDExtractors = []assetIDExtractor{
	{"asset-index key", func(m map[string]any) (uint64, bool) {
		return toUint64(m["asset-index"])
	}},
	{"asset_id key", func(m map[string]any) (uint64, bool) {
		return toUint64(m["asset_id"])
	}},
	{"nested asset.index", func(m map[string]any) (uint64, bool) {
		asset, ok := m["asset"].(map[string]any)
		if !ok {
			return 0, false
		}
		return toUint64(asset["index"])
	}},
}

// ExtractAssetID runs the extraction strategies against a raw backend
// response.
func ExtractAssetID(raw json.RawMessage) (uint64, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0, model.Errorf(model.ErrExtraction, "backend response is not a JSON object: %v", err)
	}
	for _, ex := range assetIDExtractors {
		if id, ok := ex.extract(m); ok {
			return id, nil
		}
	}
	return 0, model.Errorf(model.ErrExtraction, "no asset id found in backend response")
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return 0, false
		}
		return uint64(n), true
	case string:
		id, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	case json.Number:
		id, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

// txnDetails are the ledger parameters pulled from the backend's transaction
// echo. All fields are best effort: absent keys stay zero.
type txnDetails struct {
	ConfirmedRound uint64
	Fee            uint64
	FirstValid     uint64
	LastValid      uint64
	GenesisID      string
	GenesisHashB64 string
	Manager        string
	Reserve        string
	Freeze         string
	Clawback       string
}

// parseTxnDetails reads the txn.txn.{fee,fv,lv,gen,gh} echo plus the
// apar.{m,r,f,c} role block and the top-level confirmed round.
func parseTxnDetails(raw json.RawMessage) txnDetails {
	var out struct {
		ConfirmedRound *uint64 `json:"confirmed-round"`
		Txn            struct {
			Txn struct {
				Fee        uint64 `json:"fee"`
				FirstValid uint64 `json:"fv"`
				LastValid  uint64 `json:"lv"`
				GenesisID  string `json:"gen"`
				GenesisH   string `json:"gh"`
				Apar       struct {
					Manager  string `json:"m"`
					Reserve  string `json:"r"`
					Freeze   string `json:"f"`
					Clawback string `json:"c"`
				} `json:"apar"`
			} `json:"txn"`
		} `json:"txn"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return txnDetails{}
	}
	d := txnDetails{
		Fee:            out.Txn.Txn.Fee,
		FirstValid:     out.Txn.Txn.FirstValid,
		LastValid:      out.Txn.Txn.LastValid,
		GenesisID:      out.Txn.Txn.GenesisID,
		GenesisHashB64: out.Txn.Txn.GenesisH,
		Manager:        out.Txn.Txn.Apar.Manager,
		Reserve:        out.Txn.Txn.Apar.Reserve,
		Freeze:         out.Txn.Txn.Apar.Freeze,
		Clawback:       out.Txn.Txn.Apar.Clawback,
	}
	if out.ConfirmedRound != nil {
		d.ConfirmedRound = *out.ConfirmedRound
	}
	return d
}
