// Package statestore persists the per-device key/value state a browser
// would otherwise keep in local storage: identity, credits and session token.
package statestore

import (
	"context"
	"errors"
)

// Keys stored per device. Values are always strings.
const (
	KeyEmail   = "user_email"
	KeyCredits = "credits"
	KeyToken   = "token"
)

var ErrNoDevice = errors.New("device id is required")

type Store interface {
	Get(ctx context.Context, device, key string) (string, bool, error)
	Set(ctx context.Context, device, key, value string) error
	Delete(ctx context.Context, device string, keys ...string) error
	Close() error
}

// DeviceState is a Store view bound to a single device.
type DeviceState struct {
	store  Store
	device string
}

func ForDevice(store Store, device string) *DeviceState {
	return &DeviceState{store: store, device: device}
}

func (d *DeviceState) Get(ctx context.Context, key string) (string, bool, error) {
	return d.store.Get(ctx, d.device, key)
}

func (d *DeviceState) Set(ctx context.Context, key, value string) error {
	return d.store.Set(ctx, d.device, key, value)
}

func (d *DeviceState) Delete(ctx context.Context, keys ...string) error {
	return d.store.Delete(ctx, d.device, keys...)
}
