package models

// InboundEvent is one detection entry as relayed by the manage service
type InboundEvent struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Detect   bool    `json:"detect"`
	Location *string `json:"location,omitempty"`
}

// StatusNotification is the payload received from the manage service
type StatusNotification struct {
	Port           string         `json:"port" binding:"required"`
	Datetime       string         `json:"datetime" binding:"required"`
	Detect         bool           `json:"detect"`
	Events         []InboundEvent `json:"event"`
	ReportEndpoint string         `json:"report_endpoint"`
}

// Location is a parsed latitude/longitude pair
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocalEvent is one detection entry in the local-data consumer schema
type LocalEvent struct {
	ObjectID        string    `json:"objectId"`
	ObjectType      string    `json:"objectType"`
	DetectionStatus bool      `json:"detectionStatus"`
	Location        *Location `json:"location,omitempty"`
}

// LocalNotification is the payload forwarded to the local-data consumer
type LocalNotification struct {
	DronePortID       string       `json:"dronePortId"`
	Timestamp         string       `json:"timestamp"`
	AnyDetection      bool         `json:"anyDetection"`
	Events            []LocalEvent `json:"events"`
	ReportEndpointURL string       `json:"reportEndpointUrl"`
}
