package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sigillo.dev/sigillo/commitment"
	"sigillo.dev/sigillo/hashutil"
	"sigillo.dev/sigillo/model"
)

// Sidecar suffixes. Both are co-located with the document they describe.
const (
	MetadataSuffix   = "-METADATA.JSON"
	CommitmentSuffix = "-COMMITMENT.JSON"
)

// Store is a path-safe hierarchical document store rooted at a data
// directory.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Store rooted at root. The directory is created if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("docstore: root directory is required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

// Root returns the data directory the store was opened on.
func (s *Store) Root() string { return s.root }

// nsLock returns the mutex serializing mutations of one namespace.
func (s *Store) nsLock(namespace string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[namespace]
	if !ok {
		l = &sync.Mutex{}
		s.locks[namespace] = l
	}
	return l
}

func (s *Store) nsRoot(namespace string) (string, error) {
	if namespace == "" || namespace == "." || namespace == ".." ||
		strings.ContainsAny(namespace, `/\`) {
		return "", model.Errorf(model.ErrPathViolation, "invalid namespace %q", namespace)
	}
	return filepath.Join(s.root, namespace), nil
}

// resolve canonicalizes rel under the namespace root and rejects anything
// that would escape it, before any filesystem access happens.
func (s *Store) resolve(namespace, rel string) (string, error) {
	root, err := s.nsRoot(namespace)
	if err != nil {
		return "", err
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", model.Errorf(model.ErrPathViolation, "path %q escapes the namespace", rel)
		}
	}
	p := filepath.Clean(filepath.Join(root, filepath.FromSlash(rel)))
	if p != root && !strings.HasPrefix(p, root+string(os.PathSeparator)) {
		return "", model.Errorf(model.ErrPathViolation, "path %q escapes the namespace", rel)
	}
	return p, nil
}

// validateLeafName rejects names that are empty, contain separators, or
// collide with the sidecar naming scheme.
func validateLeafName(name string) error {
	if name == "" || name == "." || name == ".." {
		return model.Errorf(model.ErrInvalidInput, "invalid file name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return model.Errorf(model.ErrInvalidInput, "file name %q must not contain path separators", name)
	}
	if strings.HasSuffix(name, MetadataSuffix) || strings.HasSuffix(name, CommitmentSuffix) {
		return model.Errorf(model.ErrInvalidInput, "file name %q collides with a sidecar suffix", name)
	}
	return nil
}

// isSidecar reports whether rel addresses a sidecar file directly.
func isSidecar(rel string) bool {
	return strings.HasSuffix(rel, MetadataSuffix) || strings.HasSuffix(rel, CommitmentSuffix)
}

func fileType(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return model.TypeUnknown
	}
	return strings.ToLower(ext)
}

// relFolder returns dir relative to root in slash form, "" for the root
// itself.
func relFolder(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Put persists a new document and its metadata sidecar. The fingerprint is
// computed from the exact bytes written. extras is merged into the record;
// computed fields win on key collision. Writing over an existing document
// fails: replace by delete-then-recreate.
func (s *Store) Put(namespace, folder, fileName string, data []byte, extras map[string]any) (*model.MetadataRecord, error) {
	if err := validateLeafName(fileName); err != nil {
		return nil, err
	}
	dir, err := s.resolve(namespace, folder)
	if err != nil {
		return nil, err
	}
	root, _ := s.nsRoot(namespace)

	lock := s.nsLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	target := filepath.Join(dir, fileName)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, model.Errorf(model.ErrImmutable, "document %q already exists; delete it first", fileName)
		}
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(target)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return nil, err
	}

	rec := &model.MetadataRecord{
		Fingerprint: hashutil.Fingerprint(data),
		ContentCID:  hashutil.CIDv1RawSHA256String(data),
		Size:        int64(len(data)),
		Type:        fileType(fileName),
		UploadTime:  model.NowUTC(),
		Namespace:   namespace,
		FolderPath:  relFolder(root, dir),
		FileName:    fileName,
		Extras:      extras,
		Validations: []model.ValidationEntry{},
	}
	if err := writeRecord(target+MetadataSuffix, rec); err != nil {
		os.Remove(target)
		return nil, err
	}
	return rec, nil
}

// Record loads the metadata sidecar of the document at relPath.
func (s *Store) Record(namespace, relPath string) (*model.MetadataRecord, error) {
	p, err := s.resolve(namespace, relPath)
	if err != nil {
		return nil, err
	}
	return readRecord(p + MetadataSuffix)
}

// SetRecord rewrites the metadata sidecar of an existing document.
func (s *Store) SetRecord(namespace, relPath string, rec *model.MetadataRecord) error {
	p, err := s.resolve(namespace, relPath)
	if err != nil {
		return err
	}
	lock := s.nsLock(namespace)
	lock.Lock()
	defer lock.Unlock()
	if _, err := os.Stat(p); err != nil {
		return model.Errorf(model.ErrNotFound, "no document at %q", relPath)
	}
	return writeRecord(p+MetadataSuffix, rec)
}

// AppendValidation appends one validation entry to the document's record.
// The history is append-only; existing entries are never modified.
func (s *Store) AppendValidation(namespace, relPath string, entry model.ValidationEntry) error {
	p, err := s.resolve(namespace, relPath)
	if err != nil {
		return err
	}
	lock := s.nsLock(namespace)
	lock.Lock()
	defer lock.Unlock()
	rec, err := readRecord(p + MetadataSuffix)
	if err != nil {
		return err
	}
	rec.AppendValidation(entry)
	return writeRecord(p+MetadataSuffix, rec)
}

// Content returns the raw bytes of the document at relPath.
func (s *Store) Content(namespace, relPath string) ([]byte, error) {
	p, err := s.resolve(namespace, relPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.Errorf(model.ErrNotFound, "no document at %q", relPath)
		}
		return nil, err
	}
	return b, nil
}

// Commitment returns the persisted commitment artifact bytes for relPath.
func (s *Store) Commitment(namespace, relPath string) ([]byte, error) {
	p, err := s.resolve(namespace, relPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p + CommitmentSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.Errorf(model.ErrNotFound, "no commitment artifact for %q", relPath)
		}
		return nil, err
	}
	return b, nil
}

// SetCommitment persists the commitment artifact for relPath. The artifact
// is immutable: re-writing identical bytes is a no-op, differing bytes fail.
func (s *Store) SetCommitment(namespace, relPath string, data []byte) error {
	p, err := s.resolve(namespace, relPath)
	if err != nil {
		return err
	}
	lock := s.nsLock(namespace)
	lock.Lock()
	defer lock.Unlock()
	if _, err := os.Stat(p); err != nil {
		return model.Errorf(model.ErrNotFound, "no document at %q", relPath)
	}
	target := p + CommitmentSuffix
	if existing, err := os.ReadFile(target); err == nil {
		if bytes.Equal(existing, data) {
			return nil
		}
		return model.Errorf(model.ErrImmutable, "commitment artifact for %q already exists with different content", relPath)
	}
	return os.WriteFile(target, data, 0o644)
}

// List walks all metadata sidecars under the namespace and returns them
// keyed by the content's relative path. Unreadable sidecars are reported as
// stub records rather than failing the whole listing.
func (s *Store) List(namespace string) (map[string]*model.MetadataRecord, error) {
	root, err := s.nsRoot(namespace)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		return nil, model.Errorf(model.ErrNotFound, "unknown namespace %q", namespace)
	}

	result := make(map[string]*model.MetadataRecord)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), MetadataSuffix) {
			return nil
		}
		contentPath := strings.TrimSuffix(p, MetadataSuffix)
		rel, rerr := filepath.Rel(root, contentPath)
		if rerr != nil {
			return rerr
		}
		key := filepath.ToSlash(rel)
		rec, rerr := readRecord(p)
		if rerr != nil {
			result[key] = &model.MetadataRecord{
				Namespace:  namespace,
				FolderPath: relFolder(root, filepath.Dir(contentPath)),
				FileName:   filepath.Base(contentPath),
				Extras:     map[string]any{"error": "metadata file unreadable"},
			}
			return nil
		}
		result[key] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Rename renames a file or directory in place. For a file, both sidecars
// follow the content and the record's file_name is rewritten; renaming a
// directory only moves the tree, so callers follow up with Resync.
func (s *Store) Rename(namespace, relPath, newName string) error {
	if isSidecar(relPath) {
		return model.Errorf(model.ErrInvalidInput, "cannot rename a sidecar file directly")
	}
	if err := validateLeafName(newName); err != nil {
		return err
	}
	src, err := s.resolve(namespace, relPath)
	if err != nil {
		return err
	}
	root, _ := s.nsRoot(namespace)

	lock := s.nsLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	info, err := os.Stat(src)
	if err != nil {
		return model.Errorf(model.ErrNotFound, "no such path %q", relPath)
	}
	dst := filepath.Join(filepath.Dir(src), newName)
	if _, err := os.Stat(dst); err == nil {
		return model.Errorf(model.ErrInvalidInput, "destination %q already exists", newName)
	}
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	moveSidecars(src, dst)
	if err := rewriteRecordLocation(dst, func(rec *model.MetadataRecord) {
		rec.FileName = newName
	}); err != nil {
		return err
	}
	return syncCommitment(root, dst)
}

// Move relocates a file or directory into destFolder (created as needed).
// For a file, sidecars follow and the record's folder_path and file_name are
// rewritten from the real destination.
func (s *Store) Move(namespace, relPath, destFolder string) error {
	if isSidecar(relPath) {
		return model.Errorf(model.ErrInvalidInput, "cannot move a sidecar file directly")
	}
	src, err := s.resolve(namespace, relPath)
	if err != nil {
		return err
	}
	destDir, err := s.resolve(namespace, destFolder)
	if err != nil {
		return err
	}
	root, _ := s.nsRoot(namespace)

	lock := s.nsLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	info, err := os.Stat(src)
	if err != nil {
		return model.Errorf(model.ErrNotFound, "no such path %q", relPath)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(destDir, filepath.Base(src))
	if dst == src {
		return nil
	}
	if _, err := os.Stat(dst); err == nil {
		return model.Errorf(model.ErrInvalidInput, "destination already contains %q", filepath.Base(src))
	}
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	moveSidecars(src, dst)
	folder := relFolder(root, destDir)
	if err := rewriteRecordLocation(dst, func(rec *model.MetadataRecord) {
		rec.FolderPath = folder
		rec.FileName = filepath.Base(dst)
	}); err != nil {
		return err
	}
	return syncCommitment(root, dst)
}

// Delete removes a file together with both sidecars, or a directory.
// Deleting a non-empty directory requires recursive.
func (s *Store) Delete(namespace, relPath string, recursive bool) error {
	if isSidecar(relPath) {
		return model.Errorf(model.ErrInvalidInput, "cannot delete a sidecar file directly")
	}
	target, err := s.resolve(namespace, relPath)
	if err != nil {
		return err
	}
	root, _ := s.nsRoot(namespace)
	if target == root {
		return model.Errorf(model.ErrInvalidInput, "cannot delete the namespace root")
	}

	lock := s.nsLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	info, err := os.Stat(target)
	if err != nil {
		return model.Errorf(model.ErrNotFound, "no such path %q", relPath)
	}
	if info.IsDir() {
		if recursive {
			return os.RemoveAll(target)
		}
		entries, err := os.ReadDir(target)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return model.Errorf(model.ErrDirectoryNotEmpty, "directory %q is not empty", relPath)
		}
		return os.Remove(target)
	}

	// Sidecars go first so a listing never reports a half-deleted document.
	os.Remove(target + MetadataSuffix)
	os.Remove(target + CommitmentSuffix)
	return os.Remove(target)
}

// Resync walks every metadata sidecar under the namespace and corrects
// folder_path/file_name drift against the actual disk layout, in both the
// record and the commitment artifact. Used after directory renames and
// moves, which only relocate the moved root.
func (s *Store) Resync(namespace string) error {
	root, err := s.nsRoot(namespace)
	if err != nil {
		return err
	}
	if _, err := os.Stat(root); err != nil {
		return nil
	}

	lock := s.nsLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), MetadataSuffix) {
			return nil
		}
		contentPath := strings.TrimSuffix(p, MetadataSuffix)
		if _, serr := os.Stat(contentPath); serr != nil {
			return nil
		}
		if cerr := syncCommitment(root, contentPath); cerr != nil {
			return cerr
		}
		rec, rerr := readRecord(p)
		if rerr != nil {
			return nil
		}
		folder := relFolder(root, filepath.Dir(contentPath))
		name := filepath.Base(contentPath)
		if rec.FolderPath == folder && rec.FileName == name {
			return nil
		}
		rec.FolderPath = folder
		rec.FileName = name
		return writeRecord(p, rec)
	})
}

// syncCommitment rewrites the location fields of the commitment artifact
// next to the document now at contentPath. The artifact binds fingerprint
// and location, so a relocated document legitimately gets new canonical
// bytes; without this a renamed document could never be notarized again.
func syncCommitment(root, contentPath string) error {
	target := contentPath + CommitmentSuffix
	b, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var payload commitment.Payload
	if err := json.Unmarshal(b, &payload); err != nil || payload.Fingerprint == "" {
		// Not a canonical payload; leave foreign artifacts alone.
		return nil
	}
	rel, err := filepath.Rel(root, contentPath)
	if err != nil {
		return err
	}
	payload.Path = filepath.ToSlash(rel)
	payload.File = filepath.Base(contentPath)
	raw, err := payload.Canonical()
	if err != nil {
		return err
	}
	if bytes.Equal(raw, b) {
		return nil
	}
	return os.WriteFile(target, raw, 0o644)
}

// moveSidecars relocates both sidecar files, ignoring absent ones.
func moveSidecars(src, dst string) {
	for _, suffix := range []string{MetadataSuffix, CommitmentSuffix} {
		if _, err := os.Stat(src + suffix); err == nil {
			_ = os.Rename(src+suffix, dst+suffix)
		}
	}
}

// rewriteRecordLocation applies fix to the record of the document now at
// contentPath, if a record exists.
func rewriteRecordLocation(contentPath string, fix func(*model.MetadataRecord)) error {
	metaPath := contentPath + MetadataSuffix
	rec, err := readRecord(metaPath)
	if err != nil {
		if model.IsNotFound(err) {
			return nil
		}
		return err
	}
	fix(rec)
	return writeRecord(metaPath, rec)
}

func readRecord(metaPath string) (*model.MetadataRecord, error) {
	b, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.Errorf(model.ErrNotFound, "metadata not found")
		}
		return nil, err
	}
	var rec model.MetadataRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, model.Errorf(model.ErrInternal, "unreadable metadata sidecar: %v", err)
	}
	return &rec, nil
}

func writeRecord(metaPath string, rec *model.MetadataRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, append(b, '\n'), 0o644)
}
