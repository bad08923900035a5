package directory

import (
	"context"
	"errors"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/querypath/ldapauth/internal/directory"

// instrument wraps a single directory operation with a client span and
// structured start/finish logs. Fields never include credentials; callers
// pass only DNs, bases and filters.
func (c *Client) instrument(ctx context.Context, operation string, fields []zap.Field, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "directory."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	span.SetAttributes(
		attribute.String("directory.url", c.endpoint.url),
		attribute.String("directory.operation", operation),
	)

	log := c.logger.With(append([]zap.Field{
		zap.String("operation", operation),
		zap.String("call_id", uuid.NewString()),
		zap.String("url", c.endpoint.url),
	}, fields...)...)

	log.Debug("directory operation starting")
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		failure := append(errorFields(err), zap.Duration("elapsed", elapsed))
		log.Debug("directory operation failed", failure...)
		return err
	}

	log.Debug("directory operation completed", zap.Duration("elapsed", elapsed))
	return nil
}

// errorFields extracts loggable detail from a directory failure.
func errorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}

	var de *DirectoryError
	if errors.As(err, &de) {
		fields = append(fields, zap.String("category", string(de.Category)))
		if de.ResultCode > 0 {
			fields = append(fields, zap.Uint16("result_code", de.ResultCode))
		}
		return fields
	}

	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		fields = append(fields, zap.Uint16("result_code", lerr.ResultCode))
	}
	return fields
}
