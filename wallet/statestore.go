package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"

	"sigillo.dev/sigillo/model"
)

// StateStore persists identity bootstrap state on the local filesystem, one
// file per network. Files hold signing-service secrets, so the directory is
// 0700 and files are 0600.
type StateStore struct {
	Directory string
}

// NewStateStore opens (and creates if needed) the state directory.
func NewStateStore(directory string) (*StateStore, error) {
	if directory == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		directory = filepath.Join(home, ".sigillo", "identity")
	}
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return nil, err
	}
	return &StateStore{Directory: directory}, nil
}

func (ss *StateStore) path(network string) string {
	return filepath.Join(ss.Directory, "identity_"+network+".json")
}

// Load reads the persisted state for network. A missing file is not an
// error: bootstrap starts from scratch with an empty state.
func (ss *StateStore) Load(network string) (*model.IdentityState, error) {
	b, err := os.ReadFile(ss.path(network))
	if err != nil {
		if os.IsNotExist(err) {
			return &model.IdentityState{Network: network}, nil
		}
		return nil, err
	}
	var st model.IdentityState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, model.Errorf(model.ErrInternal, "unreadable identity state for %q: %v", network, err)
	}
	return &st, nil
}

// Save writes the state for its network.
func (ss *StateStore) Save(st *model.IdentityState) error {
	st.UpdatedAt = model.NowUTC()
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ss.path(st.Network), append(b, '\n'), 0o600)
}
