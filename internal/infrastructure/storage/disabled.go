package storage

import (
	"context"
	"errors"
	"net/http"
)

// ErrStorageDisabled is returned by read operations when the service
// runs without an object store.
var ErrStorageDisabled = errors.New("object storage is disabled")

// DisabledGateway is the no-op store used when storage.enabled is
// false. Every lookup is a miss and every upload is dropped, so the
// service renders fresh PDFs on each request.
type DisabledGateway struct{}

// NewDisabledGateway returns the no-op store.
func NewDisabledGateway() *DisabledGateway {
	return &DisabledGateway{}
}

func (*DisabledGateway) Exists(context.Context, string) bool {
	return false
}

func (*DisabledGateway) Upload(context.Context, string, []byte, map[string]string) string {
	return ""
}

func (*DisabledGateway) Fetch(context.Context, string) ([]byte, error) {
	return nil, ErrStorageDisabled
}

func (*DisabledGateway) StreamTo(context.Context, string, http.ResponseWriter) error {
	return ErrStorageDisabled
}
