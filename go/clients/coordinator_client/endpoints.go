package coordinator_client

const (
	// PartiesEndpoint is followed by the party id.
	PartiesEndpoint = "/api/parties/"

	AcceptHeader    = "Accept"
	JSONContentType = "application/json"
	UserAgentHeader = "User-Agent"
	UserAgent       = "listenparty-client/1.0"
)
