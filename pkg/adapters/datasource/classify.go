package datasource

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/ekaya-inc/gamedash/pkg/apperrors"
)

// ErrorClassifier is implemented by dialects that can recognise their
// driver's credential and transport failures.
type ErrorClassifier interface {
	IsAuthError(err error) bool
	IsConnectivityError(err error) bool
}

// ClassifyError tags a driver error with its taxonomy sentinel. Errors that
// already carry a sentinel are returned unchanged.
func ClassifyError(d Dialect, err error) error {
	if err == nil || apperrors.Kind(err) != nil {
		return err
	}

	if c, ok := d.(ErrorClassifier); ok {
		if c.IsAuthError(err) {
			return fmt.Errorf("%w: %w", apperrors.ErrAuth, err)
		}
		if c.IsConnectivityError(err) {
			return fmt.Errorf("%w: %w", apperrors.ErrConnectivity, err)
		}
	}

	if isConnectivityError(err) {
		return fmt.Errorf("%w: %w", apperrors.ErrConnectivity, err)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrQuery, err)
}

func isConnectivityError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
