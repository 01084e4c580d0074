package utils

// ResponseData is the JSON envelope of every non-webhook endpoint.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}
