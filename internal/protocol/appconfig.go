package protocol

// AppConfigParams carries the ICE server list handed to clients before they
// create a peer connection.
type AppConfigParams struct {
	PCConfig PCConfig `json:"pc_config"`
}

type PCConfig struct {
	ICEServers []ICEServer `json:"iceServers"`
}

// ICEServer is one STUN/TURN entry. Browsers expect TURN credentials in a
// "credential" field next to "urls"; the mobile clients expect a nested
// "username"/"password" pair on every entry. The two shapes share this struct
// with the unused fields omitted.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   *string  `json:"username,omitempty"`
	Credential *string  `json:"credential,omitempty"`
	Password   *string  `json:"password,omitempty"`
}

// ICEConfig is the resolved STUN/TURN configuration appConfig responses are
// built from.
type ICEConfig struct {
	StunURL      string
	TurnURL      string
	TurnUsername string
	TurnPassword string
}

// AppConfig shapes the appConfigResponse for the given client type. Each URL
// is expanded into udp and tcp transport variants.
func AppConfig(clientType string, ice ICEConfig) ServerMessage {
	stunURLs := transportVariants(ice.StunURL)
	turnURLs := transportVariants(ice.TurnURL)

	var servers []ICEServer
	if clientType == "browser" {
		servers = []ICEServer{
			{URLs: stunURLs},
			{
				URLs:       turnURLs,
				Username:   ptr(ice.TurnUsername),
				Credential: ptr(ice.TurnPassword),
			},
		}
	} else {
		empty := ""
		servers = []ICEServer{
			{URLs: stunURLs, Username: &empty, Password: &empty},
			{
				URLs:     turnURLs,
				Username: ptr(ice.TurnUsername),
				Password: ptr(ice.TurnPassword),
			},
		}
	}

	return ServerMessage{
		ID:     TypeAppConfigResponse,
		Params: &AppConfigParams{PCConfig: PCConfig{ICEServers: servers}},
		Result: "SUCCESS",
	}
}

func transportVariants(url string) []string {
	return []string{url + "?transport=udp", url + "?transport=tcp"}
}

func ptr(s string) *string { return &s }
