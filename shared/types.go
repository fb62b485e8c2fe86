package shared

type ClientConfig struct {
	API      APIConfig      `mapstructure:"api" validate:"required"`
	Realtime RealtimeConfig `mapstructure:"realtime" validate:"required"`
	Location LocationConfig `mapstructure:"location"`
	Agent    AgentConfig    `mapstructure:"agent"`
}

type APIConfig struct {
	BaseURL        string `mapstructure:"baseUrl" validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds" validate:"omitempty,min=1"`
}

type RealtimeConfig struct {
	BrokerURL string `mapstructure:"brokerUrl" validate:"required"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// LocationConfig supplies a static fix for hosts without a positioning
// source. Lat/Lng of 0,0 is treated as "not configured".
type LocationConfig struct {
	Latitude     float64 `mapstructure:"latitude" validate:"omitempty,latitude"`
	Longitude    float64 `mapstructure:"longitude" validate:"omitempty,longitude"`
	GeocoderURL  string  `mapstructure:"geocoderUrl"`
	FixTimeoutMs int     `mapstructure:"fixTimeoutMs" validate:"omitempty,min=1"`
}

type AgentConfig struct {
	ResyncSchedule string `mapstructure:"resyncSchedule"`
	TimeZone       string `mapstructure:"timeZone"`
}
