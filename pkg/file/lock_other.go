//go:build !unix

package file

// Lock is a no-op on platforms without flock; writers still rely on
// WriteAtomic for readers' safety.
type Lock struct{}

func Acquire(string) (*Lock, error) {
	return &Lock{}, nil
}

func (l *Lock) Release() error {
	return nil
}
