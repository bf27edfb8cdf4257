package hub

// EventMessage carries one classified line of downloader output to
// connected clients.
type EventMessage struct {
	Type    string  `json:"type"`
	Session string  `json:"session"`
	Kind    string  `json:"kind"`
	Line    string  `json:"line,omitempty"`
	Percent float64 `json:"percent,omitempty"`
	Phase   string  `json:"phase,omitempty"`
	Ts      int64   `json:"ts"`
}

// StatusMessage announces a download lifecycle change.
type StatusMessage struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	AppID   string `json:"app_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ClientMessage is what clients may send: a Guard code for the live
// download, or a cancel request.
type ClientMessage struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
