package trainer

import "github.com/neurlang/rres/checkpoint"
import "github.com/neurlang/rres/net"
import "github.com/pkg/errors"

// Resume restores the latest checkpoint of store into model. It reports the
// restored path, or "" when the store holds no checkpoint yet and the model
// keeps its fresh parameters.
func Resume(model net.Model, store *checkpoint.Store) (string, error) {
	st, err := store.Latest()
	if err != nil {
		return "", err
	}
	if st.Path == "" {
		return "", nil
	}
	snap, err := store.Load(st.Path)
	if err != nil {
		return "", err
	}
	if err := model.Restore(snap); err != nil {
		return "", errors.Wrapf(err, "restore %s", st.Path)
	}
	return st.Path, nil
}
