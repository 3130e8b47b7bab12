package scorer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/okian/moderator/internal/domain/model"
)

// Endpoint is the transport configuration of a scorer. It is either an
// APIEndpoint or a ProxyEndpoint.
type Endpoint interface {
	endpointType() model.EndpointType
}

// APIEndpoint is a synchronous scoring API answered in the request.
type APIEndpoint struct {
	URL        string
	APIKey     string
	Attributes []string
	UserAgent  string
}

func (APIEndpoint) endpointType() model.EndpointType { return model.EndpointAPI }

// ProxyEndpoint is a service that answers through a callback, or in the
// response body when it scores synchronously.
type ProxyEndpoint struct {
	URL       string
	APIKey    string
	UserAgent string
}

func (ProxyEndpoint) endpointType() model.EndpointType { return model.EndpointProxy }

// ParseEndpoint validates a scorer's endpoint settings.
func ParseEndpoint(s model.Scorer) (Endpoint, error) {
	raw := strings.TrimSpace(s.Endpoint)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: scorer %s endpoint %q", ErrConfiguration, s.ID, s.Endpoint)
	}

	switch s.EndpointType {
	case model.EndpointAPI:
		if len(s.Attributes) == 0 {
			return nil, fmt.Errorf("%w: scorer %s has no attributes", ErrConfiguration, s.ID)
		}
		return APIEndpoint{
			URL:        raw,
			APIKey:     s.APIKey,
			Attributes: append([]string(nil), s.Attributes...),
			UserAgent:  s.UserAgent,
		}, nil
	case model.EndpointProxy:
		return ProxyEndpoint{URL: raw, APIKey: s.APIKey, UserAgent: s.UserAgent}, nil
	default:
		return nil, fmt.Errorf("%w: scorer %s endpoint type %q", ErrConfiguration, s.ID, s.EndpointType)
	}
}
