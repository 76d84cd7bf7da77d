package confloader

import "errors"

// ErrReadBytesNotSupported is returned when ReadBytes is called on the
// map provider; koanf falls back to Read() for map-backed providers.
var ErrReadBytesNotSupported = errors.New("confloader: ReadBytes not supported by map provider")

// mapProvider is a koanf provider backed by an in-memory map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
