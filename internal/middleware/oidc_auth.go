package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"gql2sql/internal/logging"
	"gql2sql/internal/observability"
)

// OIDCAuthConfig controls bearer token validation.
type OIDCAuthConfig struct {
	Enabled   bool
	IssuerURL string
	Audience  string
	ClockSkew time.Duration
	// CAFile adds a PEM bundle to the roots trusted when fetching the
	// issuer's discovery document and keys.
	CAFile        string
	SkipTLSVerify bool
}

const defaultClockSkew = 2 * time.Minute

type authContextKey struct{}

// AuthContext carries the validated claims of a request.
type AuthContext struct {
	Subject  string
	Issuer   string
	Audience []string
	Claims   jwt.MapClaims
}

// AuthFromContext returns the auth context stored by the OIDC middleware.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthContext)
	return auth, ok
}

// verifyFunc checks a raw token's signature, issuer and audience and returns its claims.
type verifyFunc func(ctx context.Context, raw string) (jwt.MapClaims, error)

// OIDCAuthMiddleware rejects requests without a valid bearer token when
// enabled. metrics may be nil.
func OIDCAuthMiddleware(cfg OIDCAuthConfig, metrics *observability.AuthMetrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	if cfg.IssuerURL == "" || cfg.Audience == "" {
		return nil, errors.New("oidc auth enabled but issuer/audience not configured")
	}
	issuerURL, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid oidc issuer url: %w", err)
	}
	if issuerURL.Scheme != "https" {
		return nil, errors.New("oidc issuer url must use https")
	}

	client, err := newOIDCHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oidc provider: %w", err)
	}
	// Time claims are checked below with the configured leeway.
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.Audience, SkipExpiryCheck: true})

	verify := func(ctx context.Context, raw string) (jwt.MapClaims, error) {
		token, err := verifier.Verify(oidc.ClientContext(ctx, client), raw)
		if err != nil {
			return nil, err
		}
		claims := jwt.MapClaims{}
		if err := token.Claims(&claims); err != nil {
			return nil, fmt.Errorf("invalid token claims: %w", err)
		}
		return claims, nil
	}
	return bearerAuth(cfg, verify, metrics), nil
}

func newOIDCHTTPClient(cfg OIDCAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: cfg.SkipTLSVerify}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read oidc CA file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("oidc CA file %s contains no certificates", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   10 * time.Second,
	}, nil
}

func bearerAuth(cfg OIDCAuthConfig, verify verifyFunc, metrics *observability.AuthMetrics) func(http.Handler) http.Handler {
	skew := cfg.ClockSkew
	if skew == 0 {
		skew = defaultClockSkew
	}
	timeClaims := jwt.NewValidator(jwt.WithLeeway(skew), jwt.WithExpirationRequired())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			endpoint := r.URL.Path
			reject := func(reason, message string, err error) {
				if metrics != nil {
					metrics.RecordFailure(ctx, endpoint, reason)
				}
				attrs := []any{slog.String("reason", reason), slog.String("endpoint", endpoint)}
				if err != nil {
					attrs = append(attrs, slog.String("error", err.Error()))
				}
				logging.FromContext(ctx).Warn("authentication failed", attrs...)
				writeUnauthorized(w, message)
			}

			raw := bearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				reject("missing_token", "missing bearer token", nil)
				return
			}
			claims, err := verify(ctx, raw)
			if err != nil {
				reject("verification_failed", "invalid token", err)
				return
			}
			if err := timeClaims.Validate(claims); err != nil {
				reject("time_validation_failed", "invalid token", err)
				return
			}

			subject, _ := claims.GetSubject()
			audience, _ := claims.GetAudience()
			if metrics != nil {
				metrics.RecordSuccess(ctx, endpoint)
			}
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("auth.subject", subject),
					attribute.Bool("auth.authenticated", true),
				)
			}

			ctx = context.WithValue(ctx, authContextKey{}, AuthContext{
				Subject:  subject,
				Issuer:   cfg.IssuerURL,
				Audience: audience,
				Claims:   claims,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
