package recipients

import "net/http"

// DefaultStrategies is direct polling, then EWS, then REST.
func DefaultStrategies(hc *http.Client) []Strategy {
	return []Strategy{NewDirect(), EWS{}, REST{HTTPClient: hc}}
}
