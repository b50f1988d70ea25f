package lnnode

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"k8s.io/klog/v2"
	"os"
	"path/filepath"
	"sync"
)

// Record is one node's entry in an export manifest. Address is reserved for the node's RPC
// endpoint and is left empty until a consumer needs it.
type Record struct {
	ID       string `json:"id"`
	Address  string `json:"address,omitempty"`
	Macaroon string `json:"macaroon"`
	Cert     string `json:"cert"`
}

// Manifest is the append-only list of credentials produced by one export session. It is
// shared by every node exported in the session and is safe for concurrent appends.
type Manifest struct {
	mu      sync.Mutex
	session string
	nodes   []Record
}

func NewManifest() *Manifest {
	return &Manifest{
		session: uuid.New().String(),
		nodes:   make([]Record, 0),
	}
}

func (m *Manifest) Session() string {
	return m.session
}

func (m *Manifest) Append(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = append(m.nodes, r)
}

func (m *Manifest) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.nodes...)
}

func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Session string   `json:"session"`
		Nodes   []Record `json:"nodes"`
	}{
		Session: m.session,
		Nodes:   m.Records(),
	})
}

// WriteFile stores the manifest as indented JSON.
func (m *Manifest) WriteFile(fs afero.Fs, filename string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}
	if err := fs.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(filename))
	}
	return writeAtomic(fs, filename, data, 0644)
}

// CredentialFiles returns the local file names Export writes for this node under dir.
func (n *Node) CredentialFiles(dir string) (macaroon string, cert string) {
	macaroon = filepath.Join(dir, fmt.Sprintf("%s_admin.macaroon", n.hostname))
	cert = filepath.Join(dir, fmt.Sprintf("%s_tls.cert", n.hostname))
	return macaroon, cert
}

// Export copies the node's admin macaroon and TLS certificate into dir and appends a record
// to manifest. The export is all or nothing: both files are fetched and staged before either
// is renamed into place, files of an earlier export survive a failed one, and the record is
// appended last.
func (n *Node) Export(ctx context.Context, fs afero.Fs, manifest *Manifest, dir string) error {
	creds := n.impl.credentials
	if creds == nil {
		return errors.Wrapf(ErrExportUnsupported, "%s (%s)", n.hostname, n.impl.kind)
	}

	macaroon, err := n.fetch(ctx, creds.macaroon(n.network))
	if err != nil {
		return err
	}
	cert, err := n.fetch(ctx, creds.cert)
	if err != nil {
		return err
	}

	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	macaroonPath, certPath := n.CredentialFiles(dir)
	if err := commitPair(fs, macaroonPath, macaroon, 0600, certPath, cert, 0644); err != nil {
		return err
	}

	manifest.Append(Record{
		ID:       n.hostname,
		Macaroon: macaroonPath,
		Cert:     certPath,
	})
	klog.Infof("exported credentials of %s to %s", n.hostname, dir)
	return nil
}

func (n *Node) fetch(ctx context.Context, remotePath string) ([]byte, error) {
	data, err := n.backend.GetFile(ctx, n.index, backend.ServiceLightning, remotePath)
	if err != nil {
		return nil, &FileRetrievalError{Node: n.hostname, Path: remotePath, Err: err}
	}
	return data, nil
}

func stage(fs afero.Fs, filename string, data []byte, perm os.FileMode) (string, error) {
	tmp := filepath.Join(filepath.Dir(filename), fmt.Sprintf(".%s.%s.tmp", filepath.Base(filename), uuid.New().String()))
	if err := afero.WriteFile(fs, tmp, data, perm); err != nil {
		_ = fs.Remove(tmp)
		return "", errors.Wrapf(err, "write %s", filename)
	}
	return tmp, nil
}

func writeAtomic(fs afero.Fs, filename string, data []byte, perm os.FileMode) error {
	tmp, err := stage(fs, filename, data, perm)
	if err != nil {
		return err
	}
	if err := fs.Rename(tmp, filename); err != nil {
		_ = fs.Remove(tmp)
		return errors.Wrapf(err, "write %s", filename)
	}
	return nil
}

// commitPair replaces first and second together. When the second rename fails, first is put
// back to its previous content, or removed if it did not exist.
func commitPair(fs afero.Fs, first string, firstData []byte, firstPerm os.FileMode, second string, secondData []byte, secondPerm os.FileMode) error {
	firstTmp, err := stage(fs, first, firstData, firstPerm)
	if err != nil {
		return err
	}
	secondTmp, err := stage(fs, second, secondData, secondPerm)
	if err != nil {
		_ = fs.Remove(firstTmp)
		return err
	}

	previous, readErr := afero.ReadFile(fs, first)
	hadPrevious := readErr == nil
	if err := fs.Rename(firstTmp, first); err != nil {
		_ = fs.Remove(firstTmp)
		_ = fs.Remove(secondTmp)
		return errors.Wrapf(err, "write %s", first)
	}
	if err := fs.Rename(secondTmp, second); err != nil {
		_ = fs.Remove(secondTmp)
		var rbErr error
		if hadPrevious {
			rbErr = writeAtomic(fs, first, previous, firstPerm)
		} else {
			rbErr = fs.Remove(first)
		}
		if rbErr != nil {
			klog.Errorf("rollback %s failed: %v", first, rbErr)
		}
		return errors.Wrapf(err, "write %s", second)
	}
	return nil
}
