package evacalor

import "time"

// Device is a point-in-time snapshot of one heating device registered to
// the account. Snapshots are values; mutating a copy has no effect on the
// connection's cached state.
type Device struct {
	ID      string // platform device identifier, unique within a connection
	Product string // product identifier used alongside ID on device calls
	Serial  string
	Name    string
	Model   string
	Online  bool

	AirTemperature    *float64 // nil when the reading is missing or malformed
	TargetTemperature float64
	TargetMin         float64
	TargetMax         float64
	SmokeTemperature  *float64 // flue gas temperature, nil when unavailable

	Power         bool
	PowerLevel    int
	PowerLevelMin int
	PowerLevelMax int
	RealPower     int

	Mode  string
	Modes []string // closed set of operating modes advertised by the device

	Status     int
	StatusText string
	Alarms     int

	RefreshedAt time.Time
}

// Wire shapes of the Agua IOT HTTP API. Field names follow the platform
// JSON, which mixes snake_case and CamelCase.

type signupRequest struct {
	PhoneType              string `json:"phone_type"`
	PhoneID                string `json:"phone_id"`
	PhoneVersion           string `json:"phone_version"`
	Language               string `json:"language"`
	IDApp                  string `json:"id_app"`
	PushNotificationToken  string `json:"push_notification_token"`
	PushNotificationActive bool   `json:"push_notification_active"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

type deviceListResponse struct {
	Device []deviceEntry `json:"device"`
}

type deviceEntry struct {
	ID            int    `json:"id"`
	IDDevice      string `json:"id_device"`
	IDProduct     string `json:"id_product"`
	ProductSerial string `json:"product_serial"`
	Name          string `json:"name"`
	IsOnline      bool   `json:"is_online"`
	NameProduct   string `json:"name_product"`
}

type deviceInfoRequest struct {
	IDDevice  string `json:"id_device"`
	IDProduct string `json:"id_product"`
}

type deviceInfoResponse struct {
	DeviceInfo []struct {
		IDRegistersMap int `json:"id_registers_map"`
	} `json:"device_info"`
}

type registersMapRequest struct {
	IDDevice   string `json:"id_device"`
	IDProduct  string `json:"id_product"`
	LastUpdate string `json:"last_update"`
}

type registersMapResponse struct {
	DeviceRegistersMap struct {
		RegistersMap []registersMapEntry `json:"registers_map"`
	} `json:"device_registers_map"`
}

type registersMapEntry struct {
	ID        int           `json:"id"`
	Registers []rawRegister `json:"registers"`
}

type rawRegister struct {
	RegKey         string     `json:"reg_key"`
	RegType        string     `json:"reg_type"`
	Offset         int        `json:"offset"`
	Formula        string     `json:"formula"`
	FormulaInverse string     `json:"formula_inverse"`
	FormatString   string     `json:"format_string"`
	SetMin         float64    `json:"set_min"`
	SetMax         float64    `json:"set_max"`
	Mask           int        `json:"mask"`
	EncVal         []encValue `json:"enc_val"`
}

type encValue struct {
	Lang        string `json:"lang"`
	Description string `json:"description"`
	Value       int    `json:"value"`
}

type bufferReadingRequest struct {
	IDDevice  string `json:"id_device"`
	IDProduct string `json:"id_product"`
	BufferID  int    `json:"BufferId"`
}

type jobRequestResponse struct {
	IDRequest string `json:"idRequest"`
}

// jobStatusResponse carries the answer of an asynchronous device job. The
// answer data stays loosely typed: readings are a pair of parallel
// Items/Values arrays and write acknowledgements are signalled by the
// presence of a "Cmd" key.
type jobStatusResponse struct {
	JobAnswerStatus string         `json:"jobAnswerStatus"`
	JobAnswerData   map[string]any `json:"jobAnswerData"`
}

type writeRequest struct {
	IDDevice  string   `json:"id_device"`
	IDProduct string   `json:"id_product"`
	Protocol  string   `json:"Protocol"`
	BitData   []int    `json:"BitData"`
	Endianess []string `json:"Endianess"`
	Items     []int    `json:"Items"`
	Masks     []int    `json:"Masks"`
	Values    []int    `json:"Values"`
}
