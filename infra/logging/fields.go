package logging

import (
	"time"

	"go.uber.org/zap"
)

// Field is a typed log field.
type Field = zap.Field

func String(key, val string) zap.Field { return zap.String(key, val) }

func Strings(key string, val []string) zap.Field { return zap.Strings(key, val) }

func Int(key string, val int) zap.Field { return zap.Int(key, val) }

func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }

func Uint32(key string, val uint32) zap.Field { return zap.Uint32(key, val) }

func Uint64(key string, val uint64) zap.Field { return zap.Uint64(key, val) }

func Bool(key string, val bool) zap.Field { return zap.Bool(key, val) }

func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }

func Error(err error) zap.Field { return zap.Error(err) }

// Instrument tags an entry with the instrument it concerns.
func Instrument(id uint64) zap.Field { return zap.Uint64("instrument", id) }

// Group tags an entry with the instrument group it concerns.
func Group(id uint64) zap.Field { return zap.Uint64("group", id) }

// OrderID tags an entry with an order id.
func OrderID(id uint64) zap.Field { return zap.Uint64("order-id", id) }
