// Package checkpoint stores model parameter snapshots in a directory shared by
// the training writer and the evaluation reader.
//
// Every snapshot and the index naming the latest one are written to a
// temporary file and renamed into place, so a reader only ever sees complete
// checkpoints.
package checkpoint

import "compress/lzw"
import "encoding/json"
import "fmt"
import "io"
import "os"
import "path/filepath"
import "strconv"
import "strings"

import "github.com/pkg/errors"

const (
	// IndexName is the file naming the most recent checkpoint.
	IndexName = "checkpoint"
	// Prefix of every checkpoint file, followed by the global step.
	Prefix = "model.ckpt-"
)

// ErrUnavailable means the store could not be read right now. Readers retry.
var ErrUnavailable = errors.New("checkpoint store unavailable")

// Variable is one named parameter tensor.
type Variable struct {
	Name   string    `json:"name"`
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// Snapshot is the parameter state of a model at a global step.
type Snapshot struct {
	GlobalStep int64      `json:"global_step"`
	Variables  []Variable `json:"variables"`
}

// State describes the checkpoints listed by the index.
type State struct {
	Path string   // most recent checkpoint, empty when there is none
	Step int64    // global step of Path
	All  []string // retained checkpoints, oldest first
}

type index struct {
	ModelCheckpointPath     string   `json:"model_checkpoint_path"`
	AllModelCheckpointPaths []string `json:"all_model_checkpoint_paths"`
}

// Store reads and writes checkpoints under one directory.
type Store struct {
	dir  string
	keep int
}

// NewStore returns a store on dir that retains the last keep checkpoints.
// keep <= 0 retains all of them.
func NewStore(dir string, keep int) *Store {
	return &Store{dir: dir, keep: keep}
}

// Dir is the directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Init creates the directory.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create checkpoint dir %s", s.dir)
	}
	return nil
}

// Latest reads the index. A missing index is not an error and yields an empty
// State. An index that cannot be read or parsed yields ErrUnavailable.
func (s *Store) Latest() (State, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, IndexName))
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, errors.Wrapf(ErrUnavailable, "read index: %v", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return State{}, errors.Wrapf(ErrUnavailable, "parse index: %v", err)
	}
	if idx.ModelCheckpointPath == "" {
		return State{}, nil
	}
	st := State{
		Path: s.abs(idx.ModelCheckpointPath),
		Step: StepOf(idx.ModelCheckpointPath),
	}
	for _, p := range idx.AllModelCheckpointPaths {
		st.All = append(st.All, s.abs(p))
	}
	return st, nil
}

func (s *Store) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.dir, p)
}

// StepOf parses the global step from a checkpoint file name, or -1.
func StepOf(path string) int64 {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, Prefix) {
		return -1
	}
	step, err := strconv.ParseInt(strings.TrimPrefix(base, Prefix), 10, 64)
	if err != nil {
		return -1
	}
	return step
}

// Save writes snap as model.ckpt-<step>, points the index at it and prunes
// checkpoints beyond the retention count. It returns the written path.
func (s *Store) Save(snap Snapshot) (string, error) {
	name := fmt.Sprintf("%s%d", Prefix, snap.GlobalStep)
	err := s.writeAtomic(name, func(w io.Writer) error {
		return WriteCompressed(w, snap)
	})
	if err != nil {
		return "", errors.Wrapf(err, "save %s", name)
	}

	var idx index
	if data, err := os.ReadFile(filepath.Join(s.dir, IndexName)); err == nil {
		// a damaged index is rebuilt from this save
		_ = json.Unmarshal(data, &idx)
	}
	var all []string
	for _, p := range idx.AllModelCheckpointPaths {
		if p != name {
			all = append(all, p)
		}
	}
	all = append(all, name)
	var pruned []string
	if s.keep > 0 && len(all) > s.keep {
		pruned = all[:len(all)-s.keep]
		all = all[len(all)-s.keep:]
	}
	idx = index{ModelCheckpointPath: name, AllModelCheckpointPaths: all}

	err = s.writeAtomic(IndexName, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(idx)
	})
	if err != nil {
		return "", errors.Wrap(err, "update index")
	}
	for _, p := range pruned {
		if err := os.Remove(s.abs(p)); err != nil && !os.IsNotExist(err) {
			return "", errors.Wrapf(err, "prune %s", p)
		}
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Store) writeAtomic(name string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

// Load reads the checkpoint at path. A file removed by retention between
// Latest and Load yields ErrUnavailable; a damaged file is a hard error.
func (s *Store) Load(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Snapshot{}, errors.Wrapf(ErrUnavailable, "open %s: %v", path, err)
	}
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	snap, err := ReadCompressed(f)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "read %s", path)
	}
	return snap, nil
}

// WriteCompressed writes snap as lzw compressed json
func WriteCompressed(w io.Writer, snap Snapshot) error {
	lw := lzw.NewWriter(w, lzw.LSB, 8)
	if err := json.NewEncoder(lw).Encode(snap); err != nil {
		lw.Close()
		return err
	}
	return lw.Close()
}

// ReadCompressed reads a snapshot written by WriteCompressed
func ReadCompressed(r io.Reader) (Snapshot, error) {
	lr := lzw.NewReader(r, lzw.LSB, 8)
	defer lr.Close()
	var snap Snapshot
	if err := json.NewDecoder(lr).Decode(&snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
