package monitor

import (
	"errors"
	"fmt"
)

// ErrDispatchMiss means no registered source matches a product locator.
var ErrDispatchMiss = errors.New("no source matches locator")

type DispatchMissError struct {
	SKU     string
	Locator string
}

func (e *DispatchMissError) Error() string {
	return fmt.Sprintf("sku %s: %v: %s", e.SKU, ErrDispatchMiss, e.Locator)
}

func (e *DispatchMissError) Unwrap() error { return ErrDispatchMiss }

// FetchError wraps any failure reported by a capability, timeouts included.
type FetchError struct {
	SKU     string
	Locator string
	Source  string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("sku %s: fetch via %s failed: %v", e.SKU, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageReadError is a failed trailing-low query. Nothing was written.
type StorageReadError struct {
	SKU string
	Err error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("sku %s: read trailing low: %v", e.SKU, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// StorageWriteError means the observation was fetched but not persisted.
type StorageWriteError struct {
	SKU string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("sku %s: observation lost: %v", e.SKU, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// StorageInitError aborts a pass before any product is processed.
type StorageInitError struct {
	Err error
}

func (e *StorageInitError) Error() string {
	return fmt.Sprintf("initialize store: %v", e.Err)
}

func (e *StorageInitError) Unwrap() error { return e.Err }

// NotifyError carries the undelivered message so it can be logged in full.
type NotifyError struct {
	SKU     string
	Channel string
	Message string
	Err     error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("sku %s: %s notification failed: %v", e.SKU, e.Channel, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }
