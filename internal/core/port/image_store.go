package port

import "context"

// ProfileImageStore persists decoded profile picture bytes.
// The returned key identifies the stored object; linking the key back to the
// user record is out of scope for the store.
type ProfileImageStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}
