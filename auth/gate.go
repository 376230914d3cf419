//go:generate go run go.uber.org/mock/mockgen -source=gate.go -destination=../mocks/mock_gate.go -package=mocks
package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tradegate/domain"
	"tradegate/errors"
)

type IGate interface {
	Verify(ctx context.Context, credential string) (domain.Identity, error)
}

// Gate validates handshake credentials against the external identity
// authority. The credential is opaque to the gateway: it is forwarded as a
// bearer token and the authority's response body is the caller's identity.
type Gate struct {
	client    *http.Client
	verifyURL string
	log       *slog.Logger
}

func NewGate(verifyURL string, timeout time.Duration, log *slog.Logger) *Gate {
	return &Gate{
		client:    &http.Client{Timeout: timeout},
		verifyURL: verifyURL,
		log:       log,
	}
}

// Verify returns the identity behind the credential, or ErrHandshakeRejected
// when the authority does not vouch for it. Network failures reaching the
// authority also reject the handshake: an unverifiable credential is not a
// verified one.
func (g *Gate) Verify(ctx context.Context, credential string) (domain.Identity, error) {
	if strings.TrimSpace(credential) == "" {
		return "", fmt.Errorf("%w: missing credential", errors.ErrHandshakeRejected)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, g.verifyURL, nil)
	if err != nil {
		return "", err
	}
	request.Header.Set("Authorization", "Bearer "+credential)

	response, err := g.client.Do(request)
	if err != nil {
		g.log.Debug("Error while reaching identity authority", "err", err)
		return "", fmt.Errorf("%w: authority unreachable", errors.ErrHandshakeRejected)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", fmt.Errorf("%w: authority answered %d", errors.ErrHandshakeRejected, response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, 1024))
	if err != nil {
		return "", err
	}

	identity := strings.TrimSpace(string(body))
	if identity == "" {
		return "", fmt.Errorf("%w: authority returned an empty identity", errors.ErrHandshakeRejected)
	}
	return domain.Identity(identity), nil
}
