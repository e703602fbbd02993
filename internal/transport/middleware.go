package transport

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do implements Doer.
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Middleware wraps a Doer.
type Middleware func(next Doer) Doer

// Chain applies mws so that the first one runs outermost.
func Chain(d Doer, mws ...Middleware) Doer {
	for i := len(mws) - 1; i >= 0; i-- {
		d = mws[i](d)
	}
	return d
}

// Logging logs one line per request. Only metadata is logged, never bodies
// or headers.
func Logging(log *zap.Logger) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Duration("dur", time.Since(start)),
			}
			if err != nil {
				log.Warn("http", append(fields, zap.Error(err))...)
				return nil, err
			}
			log.Info("http", append(fields, zap.Int("status", resp.StatusCode))...)
			return resp, nil
		})
	}
}

const tokenPrefix = "secret-token:"

// Bearer authenticates every request with a merchant access token. The
// "secret-token:" prefix is added when missing.
func Bearer(token string) Middleware {
	if !strings.HasPrefix(token, tokenPrefix) {
		token = tokenPrefix + token
	}
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			req.Header.Set("Authorization", "Bearer "+token)
			return next.Do(req)
		})
	}
}
