package model

// Identity describes who sent a request
type Identity struct {
	RequestID  string `json:"request_id"`
	ClientIP   string `json:"client_ip"`
	AppVersion string `json:"app_version,omitempty"`
	// KeyName is the api key's label, or "static" for keys from config
	KeyName  string `json:"key_name"`
	UserName string `json:"user_name"`
}
