package dispatcher

import (
	"net/http"
	"strings"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/authcore"
)

const bearerPrefix = "Bearer "

// authenticate extracts and verifies the bearer token from the Authorization
// header.
func (d *Dispatcher) authenticate(r *http.Request) (*authcore.Token, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return nil, apierrors.New(apierrors.Unauthenticated, "missing or malformed Authorization header")
	}
	raw := strings.TrimPrefix(header, bearerPrefix)
	token, err := authcore.Verify(d.TokenStore, raw)
	if err != nil {
		switch err {
		case authcore.ErrTokenNotFound, authcore.ErrMalformedToken:
			return nil, apierrors.New(apierrors.Unauthenticated, "invalid bearer token")
		case authcore.ErrTokenRevoked:
			return nil, apierrors.New(apierrors.Unauthenticated, "token has been revoked")
		case authcore.ErrTokenExpired:
			return nil, apierrors.New(apierrors.Unauthenticated, "token has expired")
		default:
			return nil, apierrors.Wrap(apierrors.Internal, "verify token", err)
		}
	}
	return token, nil
}

func notFoundf(format string, args ...any) error {
	return apierrors.Newf(apierrors.NotFound, format, args...)
}

func forbiddenf(format string, args ...any) error {
	return apierrors.Newf(apierrors.Forbidden, format, args...)
}

func forbidden(message string) error {
	return apierrors.New(apierrors.Forbidden, message)
}

func methodNotAllowedf(format string, args ...any) error {
	return apierrors.Newf(apierrors.MethodNotAllowed, format, args...)
}

func badRequestf(format string, args ...any) error {
	return apierrors.Newf(apierrors.BadRequest, format, args...)
}
