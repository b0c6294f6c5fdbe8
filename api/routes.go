package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// URL parameters
	CategoryURLParam    = "category"    // URL parameter for election category
	ElectionIDURLParam  = "electionId"  // URL parameter for election id
	ScopeURLParam       = "scope"       // URL parameter for registry scope
	ParticipantURLParam = "participant" // URL parameter for participant address

	// Election endpoints
	ElectionsEndpoint            = "/elections"                                                               // GET: List elections, POST: Create election
	ElectionEndpoint             = ElectionsEndpoint + "/{" + CategoryURLParam + "}/{" + ElectionIDURLParam + "}" // GET: Election state
	ElectionRegistrationEndpoint = ElectionEndpoint + "/registration"                                         // POST: Open registration
	ElectionFreezeEndpoint       = ElectionEndpoint + "/freeze"                                               // POST: Freeze root, open voting
	ElectionCloseEndpoint        = ElectionEndpoint + "/close"                                                // POST: Close voting
	ElectionResultsEndpoint      = ElectionEndpoint + "/results"                                              // GET: Tally

	// Registry endpoints
	RegistryEndpoint      = "/registry/{" + CategoryURLParam + "}/{" + ScopeURLParam + "}"  // POST: Register a commitment
	RegistryProofEndpoint = RegistryEndpoint + "/proof/{" + ParticipantURLParam + "}"       // GET: Inclusion proof
	RegistryRootEndpoint  = RegistryEndpoint + "/root"                                      // GET: Current root and size

	// Vote endpoints
	VotesEndpoint = "/votes" // POST: Submit a ballot
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	// Always try to replace the placeholder, even if it's after the '?'
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
