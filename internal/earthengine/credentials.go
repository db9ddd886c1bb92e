package earthengine

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

var Scopes = []string{
	"https://www.googleapis.com/auth/earthengine",
	"https://www.googleapis.com/auth/cloud-platform",
}

// Credentials selects how the HTTP client authenticates. With an empty
// ServiceAccount the ambient Google credentials are used.
type Credentials struct {
	ServiceAccount string
	PrivateKey     string
}

// HTTPClient returns an authenticated client. Keys pasted into environment
// files usually carry literal \n sequences; they are turned into newlines.
func (c Credentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	if c.ServiceAccount == "" {
		client, err := google.DefaultClient(ctx, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to load default google credentials: %w", err)
		}
		return client, nil
	}
	if c.PrivateKey == "" {
		return nil, fmt.Errorf("service account %s has no private key", c.ServiceAccount)
	}

	conf := &jwt.Config{
		Email:      c.ServiceAccount,
		PrivateKey: []byte(NormalizePrivateKey(c.PrivateKey)),
		Scopes:     Scopes,
		TokenURL:   google.JWTTokenURL,
	}
	return conf.Client(ctx), nil
}

func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}
