package logger

import (
	"time"

	"go.uber.org/zap"
)

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

func Provider(v string) zap.Field { return zap.String("provider", v) }

// Email should only be logged at debug level in production.
func Email(v string) zap.Field { return zap.String("email", v) }

func Err(err error) zap.Field { return zap.Error(err) }

// Actor is the signed-in user performing an administrative action.
func Actor(v string) zap.Field { return zap.String("actor_id", v) }

func Providers(v []string) zap.Field { return zap.Strings("providers", v) }
