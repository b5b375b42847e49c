package coordinator_client

import (
	"time"

	"github.com/mcdev12/listenparty/go/clients"
)

type CoordinatorClient struct {
	*clients.BaseClient
}

// NewCoordinatorClient creates a client for the coordinator at baseURL.
// Requests time out after timeout; zero keeps the base client default.
func NewCoordinatorClient(baseURL string, timeout time.Duration) *CoordinatorClient {
	client := &CoordinatorClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(AcceptHeader, JSONContentType)
	client.SetHeader(UserAgentHeader, UserAgent)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return client
}
